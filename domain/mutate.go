package domain

import (
	"reflect"
	"strings"
)

// DefaultColumnTitle is used by AddColumn when no title is given.
const DefaultColumnTitle = "New column"

// The mutation methods below never modify the receiver. Each returns the
// resulting board and whether anything changed; when changed is false the
// receiver itself is returned.

// MoveCardWithin reorders a card inside one column so it takes the position
// currently held by targetCardID.
func (b Board) MoveCardWithin(columnID, cardID, targetCardID string) (Board, bool) {
	if columnID == "" || cardID == "" || targetCardID == "" || cardID == targetCardID {
		return b, false
	}
	ci := b.columnIndex(columnID)
	if ci < 0 {
		return b, false
	}
	col := b[ci]
	from := col.cardIndex(cardID)
	to := col.cardIndex(targetCardID)
	if from < 0 || to < 0 || spliceTarget(from, to) == from {
		return b, false
	}
	col.Cards = Splice(col.Cards, from, to)
	return b.withColumn(ci, col), true
}

// MoveCard removes a card from one column and puts it at the front of
// another. Nothing happens when the card or either column is missing.
func (b Board) MoveCard(fromColumnID, toColumnID, cardID string) (Board, bool) {
	if fromColumnID == "" || toColumnID == "" || cardID == "" {
		return b, false
	}
	fi := b.columnIndex(fromColumnID)
	ti := b.columnIndex(toColumnID)
	if fi < 0 || ti < 0 {
		return b, false
	}

	var moved *Card
	at := -1
	src := b[fi]
	remaining := make([]Card, 0, len(src.Cards))
	for i, c := range src.Cards {
		if moved == nil && c.ID == cardID {
			c := c
			moved = &c
			at = i
			continue
		}
		remaining = append(remaining, c)
	}
	// Moving the head of a column onto itself keeps the order.
	if moved == nil || (fi == ti && at == 0) {
		return b, false
	}
	src.Cards = remaining
	next := b.withColumn(fi, src)

	dst := next[ti]
	dst.Cards = append([]Card{*moved}, dst.Cards...)
	next[ti] = dst
	return next, true
}

// AddCard puts card at the front of the column. Cards with an id already on
// the board are rejected.
func (b Board) AddCard(columnID string, card Card) (Board, bool) {
	ci := b.columnIndex(columnID)
	if ci < 0 || card.ID == "" || b.HasCard(card.ID) {
		return b, false
	}
	col := b[ci]
	col.Cards = append([]Card{card.clone()}, col.Cards...)
	return b.withColumn(ci, col), true
}

// UpdateCard merges patch into the card.
func (b Board) UpdateCard(columnID, cardID string, patch CardPatch) (Board, bool) {
	ci := b.columnIndex(columnID)
	if ci < 0 {
		return b, false
	}
	col := b[ci]
	k := col.cardIndex(cardID)
	if k < 0 {
		return b, false
	}
	updated := patch.Apply(col.Cards[k])
	if reflect.DeepEqual(updated, col.Cards[k]) {
		return b, false
	}
	cards := make([]Card, len(col.Cards))
	copy(cards, col.Cards)
	cards[k] = updated
	col.Cards = cards
	return b.withColumn(ci, col), true
}

// DeleteCard removes the card from the column.
func (b Board) DeleteCard(columnID, cardID string) (Board, bool) {
	ci := b.columnIndex(columnID)
	if ci < 0 {
		return b, false
	}
	col := b[ci]
	k := col.cardIndex(cardID)
	if k < 0 {
		return b, false
	}
	cards := make([]Card, 0, len(col.Cards)-1)
	cards = append(cards, col.Cards[:k]...)
	cards = append(cards, col.Cards[k+1:]...)
	col.Cards = cards
	return b.withColumn(ci, col), true
}

// AddColumn appends an empty column. The id must not already be in use.
func (b Board) AddColumn(id, title string) (Board, bool) {
	if id == "" || b.columnIndex(id) >= 0 {
		return b, false
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultColumnTitle
	}
	next := make(Board, len(b), len(b)+1)
	copy(next, b)
	return append(next, Column{ID: id, Title: title, Cards: []Card{}}), true
}

// RenameColumn sets the trimmed title. Blank titles are ignored.
func (b Board) RenameColumn(columnID, title string) (Board, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return b, false
	}
	ci := b.columnIndex(columnID)
	if ci < 0 || b[ci].Title == title {
		return b, false
	}
	col := b[ci]
	col.Title = title
	return b.withColumn(ci, col), true
}

// DeleteColumn removes the column and all of its cards.
func (b Board) DeleteColumn(columnID string) (Board, bool) {
	ci := b.columnIndex(columnID)
	if ci < 0 {
		return b, false
	}
	next := make(Board, 0, len(b)-1)
	next = append(next, b[:ci]...)
	next = append(next, b[ci+1:]...)
	return next, true
}

// MoveColumn reorders columns with the same splice rule as MoveCardWithin.
func (b Board) MoveColumn(columnID, targetColumnID string) (Board, bool) {
	if columnID == "" || targetColumnID == "" || columnID == targetColumnID {
		return b, false
	}
	from := b.columnIndex(columnID)
	to := b.columnIndex(targetColumnID)
	if from < 0 || to < 0 || spliceTarget(from, to) == from {
		return b, false
	}
	return Board(Splice([]Column(b), from, to)), true
}

// withColumn returns a shallow copy of b with the column at i replaced.
func (b Board) withColumn(i int, col Column) Board {
	next := make(Board, len(b))
	copy(next, b)
	next[i] = col
	return next
}
