// Package coalesce deduplicates concurrent calls that describe the same
// logical request.
//
// At most one operation per key runs at a time. Every caller waiting on that
// key observes the same value and the same error. Once the operation settles
// its outcome lingers for a short window so callers arriving just after
// settlement still share it; after the window a new call runs the operation
// again. Nothing is cached beyond that window.
package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultLinger is how long a settled outcome keeps absorbing new callers.
const DefaultLinger = 100 * time.Millisecond

// ErrTypeMismatch is returned by Do when callers sharing a key expect
// different result types.
var ErrTypeMismatch = errors.New("coalesce: result type mismatch")

// ErrOperationPanic wraps the value of a panic raised by an operation. Every
// waiter on the key receives it.
var ErrOperationPanic = errors.New("coalesce: operation panicked")

// Operation produces the shared result for a key.
type Operation func(ctx context.Context) (any, error)

type outcome struct {
	val any
	err error
}

// Coalescer owns one in-flight registry. The zero value is not usable; create
// instances with New.
type Coalescer struct {
	group  singleflight.Group
	linger time.Duration
	logger *log.Logger

	mu      sync.Mutex
	settled map[string]*outcome
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithLinger overrides DefaultLinger. Zero or negative disables lingering.
func WithLinger(d time.Duration) Option {
	return func(c *Coalescer) { c.linger = d }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Coalescer) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty Coalescer.
func New(opts ...Option) *Coalescer {
	c := &Coalescer{
		linger:  DefaultLinger,
		logger:  log.StandardLogger(),
		settled: make(map[string]*outcome),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Guard runs op unless an operation for the same key is already in flight or
// has settled within the linger window, in which case the existing outcome is
// returned. Errors are returned unchanged to every waiter. A panic in op is
// recovered and returned to every waiter as ErrOperationPanic.
//
// op runs with a context detached from ctx's cancellation. If ctx is done
// before the outcome is known, Guard returns ctx.Err() and op keeps running
// for the remaining waiters.
func (c *Coalescer) Guard(ctx context.Context, key Key, op Operation) (any, error) {
	k := Normalize(key)
	if res, ok := c.lingering(k); ok {
		c.logger.WithField("key", k).Debug("coalesce.lingering")
		return res.val, res.err
	}

	opCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (val any, err error) {
		// The previous call may have settled between the lookup above and
		// this registration.
		if res, ok := c.lingering(k); ok {
			return res.val, res.err
		}
		defer func() {
			if r := recover(); r != nil {
				c.logger.WithField("key", k).WithField("panic", r).Error("coalesce.operation.panic")
				val, err = nil, fmt.Errorf("%w: %v", ErrOperationPanic, r)
			}
			c.settle(k, &outcome{val: val, err: err})
		}()
		return op(opCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.WithField("key", k).Debug("coalesce.shared")
		}
		return res.Val, res.Err
	}
}

// Forget drops the in-flight registration and any lingering outcome for key,
// so the next Guard call starts a new operation. A running operation is not
// interrupted and its current waiters still receive its outcome.
func (c *Coalescer) Forget(key Key) {
	k := Normalize(key)
	c.group.Forget(k)
	c.mu.Lock()
	delete(c.settled, k)
	c.mu.Unlock()
}

// Reset drops every lingering outcome. In-flight operations are left to
// settle, but their results will not linger.
func (c *Coalescer) Reset() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.settled))
	for k := range c.settled {
		keys = append(keys, k)
	}
	c.settled = make(map[string]*outcome)
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k)
	}
}

func (c *Coalescer) lingering(k string) (*outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.settled[k]
	return res, ok
}

func (c *Coalescer) settle(k string, res *outcome) {
	if c.linger <= 0 {
		return
	}
	c.mu.Lock()
	c.settled[k] = res
	c.mu.Unlock()

	time.AfterFunc(c.linger, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.settled[k] == res {
			delete(c.settled, k)
		}
	})
}

// Do is the typed form of Guard.
func Do[T any](ctx context.Context, c *Coalescer, key Key, op func(ctx context.Context) (T, error)) (T, error) {
	val, err := c.Guard(ctx, key, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	var zero T
	if val == nil {
		return zero, err
	}
	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrTypeMismatch, Normalize(key), val)
	}
	return typed, err
}
