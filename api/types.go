package api

import (
	"context"

	"sprint-api/board"
	"sprint-api/domain"
)

// BoardStore is the board state the handlers operate on. Mutations never
// fail: unknown ids leave the board unchanged and report Changed=false.
type BoardStore interface {
	Snapshot() board.Result
	MoveCardWithin(ctx context.Context, columnID, cardID, targetCardID string) board.Result
	MoveCard(ctx context.Context, fromColumnID, toColumnID, cardID string) board.Result
	AddCard(ctx context.Context, columnID string, in domain.CardInput) board.Result
	UpdateCard(ctx context.Context, columnID, cardID string, patch domain.CardPatch) board.Result
	DeleteCard(ctx context.Context, columnID, cardID string) board.Result
	AddColumn(ctx context.Context, title string) board.Result
	RenameColumn(ctx context.Context, columnID, title string) board.Result
	DeleteColumn(ctx context.Context, columnID string) board.Result
	MoveColumn(ctx context.Context, columnID, targetColumnID string) board.Result
}

// Catalog serves the read-only console data.
type Catalog interface {
	SprintStats(ctx context.Context) (domain.SprintStats, error)
	Members(ctx context.Context) ([]domain.Member, error)
	Stories(ctx context.Context) ([]domain.Story, error)
	Priorities(ctx context.Context) ([]string, error)
	States(ctx context.Context) ([]string, error)
}

type boardResponse struct {
	Columns  domain.Board `json:"columns"`
	Revision uint64       `json:"revision"`
	Changed  bool         `json:"changed"`
}

type sprintResponse struct {
	Stats    domain.SprintStats `json:"stats"`
	Columns  domain.Board       `json:"columns"`
	Revision uint64             `json:"revision"`
	Members  []domain.Member    `json:"members"`
}

type backlogResponse struct {
	Stories    []domain.Story      `json:"stories"`
	Stats      domain.BacklogStats `json:"stats"`
	Priorities []string            `json:"priorities"`
	States     []string            `json:"states"`
}

type columnTitleRequest struct {
	Title string `json:"title"`
}

type moveColumnRequest struct {
	TargetColumnID string `json:"targetColumnId"`
}

type reorderCardRequest struct {
	TargetCardID string `json:"targetCardId"`
}

type moveCardRequest struct {
	ToColumnID string `json:"toColumnId"`
}
