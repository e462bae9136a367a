package domain

import "strings"

// FilterAll is accepted as a priority or state filter meaning "no filter".
const FilterAll = "all"

// Story is a product backlog item.
type Story struct {
	ID             string   `json:"id"`
	Priority       string   `json:"priority"`
	State          string   `json:"state"`
	Label          string   `json:"label,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Points         *float64 `json:"points"`
	Author         string   `json:"author,omitempty"`
	ReadyForSprint bool     `json:"readyForSprint"`
	Estimated      bool     `json:"estimated"`
}

// StoryFilter narrows the backlog. Empty fields match everything.
type StoryFilter struct {
	Query    string
	Priority string
	State    string
}

// BacklogStats summarizes a backlog.
type BacklogStats struct {
	Total          int     `json:"total"`
	Points         float64 `json:"points"`
	ReadyForSprint int     `json:"readyForSprint"`
	Unestimated    int     `json:"unestimated"`
}

// FilterStories returns the stories matching f, keeping their order.
func FilterStories(stories []Story, f StoryFilter) []Story {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Story, 0, len(stories))
	for _, st := range stories {
		if q != "" &&
			!strings.Contains(strings.ToLower(st.ID), q) &&
			!strings.Contains(strings.ToLower(st.Title), q) &&
			!strings.Contains(strings.ToLower(st.Description), q) {
			continue
		}
		if !matchesFacet(f.Priority, st.Priority) || !matchesFacet(f.State, st.State) {
			continue
		}
		out = append(out, st)
	}
	return out
}

func matchesFacet(want, got string) bool {
	return want == "" || strings.EqualFold(want, FilterAll) || want == got
}

// SummarizeBacklog computes totals over all stories.
func SummarizeBacklog(stories []Story) BacklogStats {
	stats := BacklogStats{Total: len(stories)}
	for _, st := range stories {
		if st.Points != nil {
			stats.Points += *st.Points
		}
		if st.ReadyForSprint {
			stats.ReadyForSprint++
		}
		if !st.Estimated || st.Points == nil {
			stats.Unestimated++
		}
	}
	return stats
}
