package domain

// Progress tracks completed subtasks of a card.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Card represents a single unit of work on the sprint board.
type Card struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Points   float64  `json:"points"`
	Progress Progress `json:"progress"`
	Owner    string   `json:"owner"`
}

// Column is a named, ordered list of cards.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Cards []Card `json:"cards"`
}

// Board is the ordered list of columns. It is the unit of persistence.
type Board []Column

// Member is a team member that can own cards.
type Member struct {
	ID       string `json:"id"`
	Initials string `json:"initials"`
	Color    string `json:"color,omitempty"`
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	out := make(Board, len(b))
	for i, col := range b {
		out[i] = col.clone()
	}
	return out
}

// CardCount returns the number of cards across all columns.
func (b Board) CardCount() int {
	n := 0
	for _, col := range b {
		n += len(col.Cards)
	}
	return n
}

// Column returns the column with the given id.
func (b Board) Column(id string) (Column, bool) {
	if i := b.columnIndex(id); i >= 0 {
		return b[i], true
	}
	return Column{}, false
}

// HasCard reports whether any column holds a card with the given id.
func (b Board) HasCard(id string) bool {
	for _, col := range b {
		if col.cardIndex(id) >= 0 {
			return true
		}
	}
	return false
}

func (b Board) columnIndex(id string) int {
	for i, col := range b {
		if col.ID == id {
			return i
		}
	}
	return -1
}

func (c Column) cardIndex(id string) int {
	for i, card := range c.Cards {
		if card.ID == id {
			return i
		}
	}
	return -1
}

func (c Column) clone() Column {
	out := c
	out.Cards = make([]Card, len(c.Cards))
	for i, card := range c.Cards {
		out.Cards[i] = card.clone()
	}
	return out
}

func (c Card) clone() Card {
	out := c
	if c.Tags != nil {
		out.Tags = make([]string, len(c.Tags))
		copy(out.Tags, c.Tags)
	}
	return out
}
