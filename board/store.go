// Package board owns the in-memory sprint board and persists a full snapshot
// after every mutation that changes it.
package board

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"sprint-api/domain"
)

// DefaultKey is the persistence key used when none is configured.
const DefaultKey = "sprint_columns"

// Persistence is a durable key to JSON snapshot store. Load reports ok=false
// when no snapshot has been written for key.
type Persistence interface {
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// Store holds the board for the session. Mutations are serialized and each
// one replaces the board snapshot rather than editing it.
type Store struct {
	persist Persistence
	key     string
	members []domain.Member
	logger  *log.Logger
	newID   func(prefix string) string

	mu       sync.Mutex
	board    domain.Board
	ready    bool
	revision uint64
}

// Result is the outcome of one mutation, captured atomically.
type Result struct {
	Board    domain.Board
	Revision uint64
	// Changed is false when the mutation left the board as it was.
	Changed bool
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the persistence key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMembers sets the members used to default card owners.
func WithMembers(members []domain.Member) Option {
	return func(s *Store) { s.members = append([]domain.Member(nil), members...) }
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator replaces the generator for column and card ids.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates an uninitialized Store.
func New(p Persistence, opts ...Option) *Store {
	if p == nil {
		panic("board.New: persistence is nil")
	}
	s := &Store{
		persist: p,
		key:     DefaultKey,
		logger:  log.StandardLogger(),
		newID:   randomID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Initialize loads the persisted board. When there is none, or the stored
// snapshot cannot be decoded, defaults are seeded and saved. A load error is
// returned and leaves the store uninitialized. Calling it again after success
// returns the current board.
func (s *Store) Initialize(ctx context.Context, defaults domain.Board) (domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return s.board.Clone(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := s.logger.WithField("key", s.key)
	data, ok, err := s.persist.Load(ctx, s.key)
	if err != nil {
		// A failed read says nothing about whether a board exists, so the
		// stored one must not be replaced by the seed.
		entry.WithError(err).Error("board.load.failed")
		return nil, fmt.Errorf("load board %s: %w", s.key, err)
	}
	if ok {
		var loaded domain.Board
		if err := sonic.Unmarshal(data, &loaded); err != nil {
			entry.WithError(err).Warn("board.decode.failed; seeding defaults")
		} else {
			s.board = normalize(loaded)
			s.ready = true
			entry.WithField("columns", len(s.board)).Debug("board.loaded")
			return s.board.Clone(), nil
		}
	}

	s.board = normalize(defaults.Clone())
	s.ready = true
	s.save(ctx)
	entry.WithField("columns", len(s.board)).Info("board.seeded")
	return s.board.Clone(), nil
}

// Ready reports whether Initialize has completed.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Board returns a copy of the current board.
func (s *Store) Board() domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeReady()
	return s.board.Clone()
}

// Snapshot returns a copy of the current board with its revision.
func (s *Store) Snapshot() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeReady()
	return Result{Board: s.board.Clone(), Revision: s.revision}
}

// Revision counts the mutations that changed the board since Initialize.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Members returns the configured members.
func (s *Store) Members() []domain.Member {
	return append([]domain.Member(nil), s.members...)
}

func (s *Store) MoveCardWithin(ctx context.Context, columnID, cardID, targetCardID string) Result {
	return s.apply(ctx, "move_card_within", func(b domain.Board) (domain.Board, bool) {
		return b.MoveCardWithin(columnID, cardID, targetCardID)
	})
}

func (s *Store) MoveCard(ctx context.Context, fromColumnID, toColumnID, cardID string) Result {
	return s.apply(ctx, "move_card", func(b domain.Board) (domain.Board, bool) {
		return b.MoveCard(fromColumnID, toColumnID, cardID)
	})
}

// AddCard builds a card from in with member defaults and puts it at the front
// of the column. An empty id is replaced with a generated one.
func (s *Store) AddCard(ctx context.Context, columnID string, in domain.CardInput) Result {
	return s.apply(ctx, "add_card", func(b domain.Board) (domain.Board, bool) {
		if in.ID == "" {
			in.ID = s.uniqueID("card-", b.HasCard)
		}
		return b.AddCard(columnID, domain.BuildCard(in, s.members))
	})
}

func (s *Store) UpdateCard(ctx context.Context, columnID, cardID string, patch domain.CardPatch) Result {
	return s.apply(ctx, "update_card", func(b domain.Board) (domain.Board, bool) {
		return b.UpdateCard(columnID, cardID, patch)
	})
}

func (s *Store) DeleteCard(ctx context.Context, columnID, cardID string) Result {
	return s.apply(ctx, "delete_card", func(b domain.Board) (domain.Board, bool) {
		return b.DeleteCard(columnID, cardID)
	})
}

// AddColumn appends an empty column with a generated id.
func (s *Store) AddColumn(ctx context.Context, title string) Result {
	return s.apply(ctx, "add_column", func(b domain.Board) (domain.Board, bool) {
		id := s.uniqueID("col-", func(id string) bool {
			_, ok := b.Column(id)
			return ok
		})
		return b.AddColumn(id, title)
	})
}

func (s *Store) RenameColumn(ctx context.Context, columnID, title string) Result {
	return s.apply(ctx, "rename_column", func(b domain.Board) (domain.Board, bool) {
		return b.RenameColumn(columnID, title)
	})
}

func (s *Store) DeleteColumn(ctx context.Context, columnID string) Result {
	return s.apply(ctx, "delete_column", func(b domain.Board) (domain.Board, bool) {
		return b.DeleteColumn(columnID)
	})
}

func (s *Store) MoveColumn(ctx context.Context, columnID, targetColumnID string) Result {
	return s.apply(ctx, "move_column", func(b domain.Board) (domain.Board, bool) {
		return b.MoveColumn(columnID, targetColumnID)
	})
}

func (s *Store) apply(ctx context.Context, op string, fn func(domain.Board) (domain.Board, bool)) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeReady()

	next, changed := fn(s.board)
	if !changed {
		s.logger.WithField("op", op).Debug("board.noop")
		return Result{Board: s.board.Clone(), Revision: s.revision}
	}
	s.board = next
	s.revision++
	s.save(ctx)
	return Result{Board: s.board.Clone(), Revision: s.revision, Changed: true}
}

// save writes the current board. Failures are logged only: the in-memory
// board stays authoritative for the session. Callers hold s.mu.
func (s *Store) save(ctx context.Context) {
	data, err := sonic.Marshal(s.board)
	if err != nil {
		s.logger.WithError(err).WithField("key", s.key).Error("board.encode.failed")
		return
	}
	if err := s.persist.Save(ctx, s.key, data); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"key":      s.key,
			"revision": s.revision,
			"bytes":    len(data),
		}).Error("board.save.failed")
	}
}

func (s *Store) mustBeReady() {
	if !s.ready {
		panic("board: store used before Initialize")
	}
}

func (s *Store) uniqueID(prefix string, taken func(string) bool) string {
	for {
		id := s.newID(prefix)
		if !taken(id) {
			return id
		}
	}
}

// normalize replaces nil card and tag lists so snapshots always encode them
// as arrays.
func normalize(b domain.Board) domain.Board {
	if b == nil {
		return domain.Board{}
	}
	for i := range b {
		if b[i].Cards == nil {
			b[i].Cards = []domain.Card{}
		}
		for j := range b[i].Cards {
			if b[i].Cards[j].Tags == nil {
				b[i].Cards[j].Tags = []string{}
			}
		}
	}
	return b
}
