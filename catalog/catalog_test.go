package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sprint-api/coalesce"
	"sprint-api/domain"
)

type countingSource struct {
	*Static
	statsCalls   atomic.Int32
	membersCalls atomic.Int32
	storiesCalls atomic.Int32
	release      chan struct{}
	err          error
}

func newCountingSource() *countingSource {
	return &countingSource{Static: NewStatic(), release: make(chan struct{})}
}

func (c *countingSource) SprintStats(ctx context.Context) (domain.SprintStats, error) {
	c.statsCalls.Add(1)
	<-c.release
	if c.err != nil {
		return domain.SprintStats{}, c.err
	}
	return c.Static.SprintStats(ctx)
}

func (c *countingSource) Members(ctx context.Context) ([]domain.Member, error) {
	c.membersCalls.Add(1)
	return c.Static.Members(ctx)
}

func (c *countingSource) Stories(ctx context.Context) ([]domain.Story, error) {
	c.storiesCalls.Add(1)
	return c.Static.Stories(ctx)
}

func TestStaticSeed(t *testing.T) {
	s := NewStatic()
	ctx := context.Background()

	stats, err := s.SprintStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PointsDone != 34 || stats.PointsTotal != 55 || stats.TeamSize != 8 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	members, _ := s.Members(ctx)
	if len(members) != 5 || members[0].Initials != "JM" {
		t.Fatalf("unexpected members: %+v", members)
	}
	if got := domain.DefaultOwner(members); got != "JM" {
		t.Fatalf("expected first member as default owner, got %q", got)
	}

	stories, _ := s.Stories(ctx)
	if got := domain.SummarizeBacklog(stories); got != (domain.BacklogStats{Total: 3, Points: 13, ReadyForSprint: 2, Unestimated: 1}) {
		t.Fatalf("unexpected backlog stats: %+v", got)
	}
}

func TestStaticReturnsCopies(t *testing.T) {
	s := NewStatic()
	ctx := context.Background()

	members, _ := s.Members(ctx)
	members[0].Initials = "XX"
	stories, _ := s.Stories(ctx)
	*stories[0].Points = 100

	again, _ := s.Members(ctx)
	if again[0].Initials != "JM" {
		t.Fatalf("member mutation leaked")
	}
	storiesAgain, _ := s.Stories(ctx)
	if *storiesAgain[0].Points != 8 {
		t.Fatalf("story mutation leaked")
	}
}

func TestStaticHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStatic().Priorities(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestGuardedCoalescesConcurrentReads(t *testing.T) {
	src := newCountingSource()
	g := NewGuarded(src, coalesce.New())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]domain.SprintStats, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats, err := g.SprintStats(context.Background())
			if err != nil {
				t.Errorf("stats: %v", err)
				return
			}
			results[i] = stats
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if got := src.statsCalls.Load(); got != 1 {
		t.Fatalf("expected one underlying read, got %d", got)
	}
	for _, r := range results {
		if r.PointsDone != 34 {
			t.Fatalf("unexpected result: %+v", r)
		}
	}
}

func TestGuardedSharesFailure(t *testing.T) {
	src := newCountingSource()
	src.err = errors.New("stats offline")
	close(src.release)
	g := NewGuarded(src, coalesce.New())

	if _, err := g.SprintStats(context.Background()); err == nil || err.Error() != "stats offline" {
		t.Fatalf("expected source error, got %v", err)
	}
	if _, err := g.SprintStats(context.Background()); err == nil {
		t.Fatalf("expected lingering failure to be shared")
	}
	if got := src.statsCalls.Load(); got != 1 {
		t.Fatalf("expected one underlying read inside linger window, got %d", got)
	}
}

func TestGuardedMembersAreIsolated(t *testing.T) {
	src := newCountingSource()
	g := NewGuarded(src, coalesce.New(coalesce.WithLinger(time.Second)))
	ctx := context.Background()

	first, err := g.Members(ctx)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	first[0].Initials = "XX"

	second, _ := g.Members(ctx)
	if second[0].Initials != "JM" {
		t.Fatalf("shared result was mutated through a caller copy")
	}
	if got := src.membersCalls.Load(); got != 1 {
		t.Fatalf("expected second read to reuse settled result, got %d calls", got)
	}
}

func TestGuardedStoriesAreIsolated(t *testing.T) {
	src := newCountingSource()
	g := NewGuarded(src, coalesce.New(coalesce.WithLinger(time.Second)))
	ctx := context.Background()

	first, err := g.Stories(ctx)
	if err != nil {
		t.Fatalf("stories: %v", err)
	}
	title := first[0].Title
	*first[0].Points = 100
	first[0].Title = "mutated"

	second, _ := g.Stories(ctx)
	if *second[0].Points != 8 || second[0].Title != title {
		t.Fatalf("shared stories were mutated through a caller copy: %+v", second[0])
	}
	if got := src.storiesCalls.Load(); got != 1 {
		t.Fatalf("expected second read to reuse settled result, got %d calls", got)
	}
}

func TestNewGuardedRequiresDependencies(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewGuarded(nil, coalesce.New())
}
