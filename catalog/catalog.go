// Package catalog serves the read-only data shown around the sprint board:
// sprint header stats, team members and the product backlog.
package catalog

import (
	"context"

	"sprint-api/domain"
)

// Source provides catalog reads.
type Source interface {
	SprintStats(ctx context.Context) (domain.SprintStats, error)
	Members(ctx context.Context) ([]domain.Member, error)
	Stories(ctx context.Context) ([]domain.Story, error)
	Priorities(ctx context.Context) ([]string, error)
	States(ctx context.Context) ([]string, error)
}

// Static is an in-process Source. Every read returns a fresh copy.
type Static struct {
	Stats      domain.SprintStats
	Team       []domain.Member
	Backlog    []domain.Story
	Priority   []string
	StateNames []string
}

func points(v float64) *float64 { return &v }

// NewStatic returns a Static seeded with the current sprint.
func NewStatic() *Static {
	return &Static{
		Stats: domain.SprintStats{
			Name:          "Sprint 5 - Task management and notifications",
			Status:        "Active sprint",
			Duration:      "2 weeks",
			DaysRemaining: 5,
			PointsDone:    34,
			PointsTotal:   55,
			Velocity:      6.8,
			Trend:         "+12% vs previous",
			TeamSize:      8,
		},
		Team: []domain.Member{
			{ID: "u1", Initials: "JM", Color: "bg-rose-500"},
			{ID: "u2", Initials: "HC", Color: "bg-sky-500"},
			{ID: "u3", Initials: "GA", Color: "bg-emerald-500"},
			{ID: "u4", Initials: "M", Color: "bg-violet-500"},
			{ID: "u5", Initials: "AM", Color: "bg-orange-500"},
		},
		Backlog: []domain.Story{
			{
				ID:             "US-001",
				Priority:       "Critical",
				State:          "Ready",
				Label:          "Authentication",
				Title:          "As a user I want to sign in with my email address",
				Description:    "Email and password authentication",
				Points:         points(8),
				Author:         "Juan Perez",
				ReadyForSprint: true,
				Estimated:      true,
			},
			{
				ID:             "US-002",
				Priority:       "High",
				State:          "Ready",
				Label:          "Attendance",
				Title:          "As an intern I want to see my attendance history",
				Description:    "Dashboard with personal attendance charts and stats",
				Points:         points(5),
				Author:         "Maria Garcia",
				ReadyForSprint: true,
				Estimated:      true,
			},
			{
				ID:          "US-003",
				Priority:    "Medium",
				State:       "In review",
				Label:       "Reports",
				Title:       "As a user I want to export reports as CSV",
				Description: "CSV export of listings with the current filters",
				Author:      "Carlos Ramirez",
			},
		},
		Priority:   []string{"Critical", "High", "Medium", "Low"},
		StateNames: []string{"Ready", "In review", "Done"},
	}
}

func (s *Static) SprintStats(ctx context.Context) (domain.SprintStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.SprintStats{}, err
	}
	return s.Stats, nil
}

func (s *Static) Members(ctx context.Context) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Member{}, s.Team...), nil
}

func (s *Static) Stories(ctx context.Context) ([]domain.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cloneStories(s.Backlog), nil
}

// cloneStories copies stories along with their Points.
func cloneStories(in []domain.Story) []domain.Story {
	out := make([]domain.Story, len(in))
	for i, st := range in {
		if st.Points != nil {
			st.Points = points(*st.Points)
		}
		out[i] = st
	}
	return out
}

func (s *Static) Priorities(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string{}, s.Priority...), nil
}

func (s *Static) States(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string{}, s.StateNames...), nil
}
