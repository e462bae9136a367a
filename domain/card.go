package domain

const (
	// DefaultProgressTotal is the subtask total assigned to new cards.
	DefaultProgressTotal = 17
	// UnassignedOwner is used when no members are configured.
	UnassignedOwner = "NA"
)

// CardInput carries the caller supplied fields of a new card. Nil fields
// receive defaults in BuildCard.
type CardInput struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Tags     []string  `json:"tags,omitempty"`
	Points   float64   `json:"points,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
	Owner    string    `json:"owner,omitempty"`
}

// CardPatch is a partial update of a card. Only non-nil fields are applied.
// The card id cannot be patched.
type CardPatch struct {
	Title    *string   `json:"title,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Points   *float64  `json:"points,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
	Owner    *string   `json:"owner,omitempty"`
}

// BuildCard resolves defaults for a new card.
func BuildCard(in CardInput, members []Member) Card {
	card := Card{
		ID:       in.ID,
		Title:    in.Title,
		Tags:     []string{},
		Points:   in.Points,
		Progress: Progress{Done: 0, Total: DefaultProgressTotal},
		Owner:    in.Owner,
	}
	if len(in.Tags) > 0 {
		card.Tags = append(card.Tags, in.Tags...)
	}
	if card.Points < 0 {
		card.Points = 0
	}
	if in.Progress != nil {
		card.Progress = *in.Progress
	}
	if card.Owner == "" {
		card.Owner = DefaultOwner(members)
	}
	return card
}

// DefaultOwner returns the initials of the first member, or UnassignedOwner.
func DefaultOwner(members []Member) string {
	if len(members) > 0 && members[0].Initials != "" {
		return members[0].Initials
	}
	return UnassignedOwner
}

// Apply returns card with the patch merged over it.
func (p CardPatch) Apply(card Card) Card {
	out := card.clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Tags != nil {
		out.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Points != nil {
		out.Points = *p.Points
		if out.Points < 0 {
			out.Points = 0
		}
	}
	if p.Progress != nil {
		out.Progress = *p.Progress
	}
	if p.Owner != nil {
		out.Owner = *p.Owner
	}
	return out
}
