package domain

// SprintStats is the header summary of the active sprint.
type SprintStats struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	Duration      string  `json:"duration"`
	DaysRemaining int     `json:"daysRemaining"`
	PointsDone    float64 `json:"pointsDone"`
	PointsTotal   float64 `json:"pointsTotal"`
	Velocity      float64 `json:"velocity"`
	Trend         string  `json:"trend,omitempty"`
	TeamSize      int     `json:"teamSize"`
}

// DefaultBoard is the board seeded when nothing has been persisted yet.
func DefaultBoard() Board {
	card := func(id, title string, points float64, total int, owner string, tags ...string) Card {
		return Card{ID: id, Title: title, Tags: tags, Points: points, Progress: Progress{Total: total}, Owner: owner}
	}
	return Board{
		{
			ID:    "col-1",
			Title: "Product Backlog",
			Cards: []Card{
				card("HU01", "User login and registration", 5, 17, "JP", "High priority", "Authentication", "Back-End"),
				card("HU02", "Password reset from recovery link", 5, 17, "MG", "High priority", "Authentication", "Security"),
				card("HU03", "Interactive side menu and navigation", 6, 17, "AM", "Front-End", "Navigation", "High priority"),
			},
		},
		{
			ID:    "col-2",
			Title: "PB-M1 (Architecture)",
			Cards: []Card{
				card("HU04", "JWT authentication system", 6, 14, "AM", "High priority", "Authentication", "Security"),
				card("HU05", "Roles and permissions", 8, 14, "LR", "Back-End", "Roles", "Permissions"),
				card("HU06", "Email verification", 6, 14, "AM", "Back-End", "Authentication"),
			},
		},
		{
			ID:    "col-3",
			Title: "PB-M2 (Users)",
			Cards: []Card{
				card("HU07", "User management CRUD", 6, 17, "AM", "High priority", "Database", "Security"),
				card("HU08", "Profile editing", 5, 17, "PS", "Front-End", "Profile", "Design"),
				card("HU09", "Password change", 6, 17, "VR", "Front-End", "Authentication"),
			},
		},
		{
			ID:    "col-4",
			Title: "PB-M3 (Tasks)",
			Cards: []Card{
				card("HU10", "Email verification flow", 5, 17, "JP", "Verification", "Back-End"),
			},
		},
	}
}
