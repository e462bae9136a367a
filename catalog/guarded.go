package catalog

import (
	"context"

	"sprint-api/coalesce"
	"sprint-api/domain"
)

// Keys under which catalog reads are coalesced.
const (
	KeySprintStats coalesce.StringKey = "catalog:sprint-stats"
	KeyMembers     coalesce.StringKey = "catalog:members"
	KeyStories     coalesce.StringKey = "catalog:stories"
	KeyPriorities  coalesce.StringKey = "catalog:priorities"
	KeyStates      coalesce.StringKey = "catalog:states"
)

// Guarded routes every read of src through a coalescer so that overlapping
// consumers share one underlying call.
type Guarded struct {
	src Source
	c   *coalesce.Coalescer
}

func NewGuarded(src Source, c *coalesce.Coalescer) *Guarded {
	if src == nil || c == nil {
		panic("catalog.NewGuarded: source and coalescer are required")
	}
	return &Guarded{src: src, c: c}
}

func (g *Guarded) SprintStats(ctx context.Context) (domain.SprintStats, error) {
	return coalesce.Do(ctx, g.c, KeySprintStats, g.src.SprintStats)
}

// Members shares one slice between coalesced callers; it is copied before
// being handed out.
func (g *Guarded) Members(ctx context.Context) ([]domain.Member, error) {
	m, err := coalesce.Do(ctx, g.c, KeyMembers, g.src.Members)
	if err != nil {
		return nil, err
	}
	return append([]domain.Member{}, m...), nil
}

// Stories are deep-copied so callers cannot reach each other's Points.
func (g *Guarded) Stories(ctx context.Context) ([]domain.Story, error) {
	st, err := coalesce.Do(ctx, g.c, KeyStories, g.src.Stories)
	if err != nil {
		return nil, err
	}
	return cloneStories(st), nil
}

func (g *Guarded) Priorities(ctx context.Context) ([]string, error) {
	p, err := coalesce.Do(ctx, g.c, KeyPriorities, g.src.Priorities)
	if err != nil {
		return nil, err
	}
	return append([]string{}, p...), nil
}

func (g *Guarded) States(ctx context.Context) ([]string, error) {
	s, err := coalesce.Do(ctx, g.c, KeyStates, g.src.States)
	if err != nil {
		return nil, err
	}
	return append([]string{}, s...), nil
}
