// Package engine drives interactive programs attached to pseudo-terminals.
//
// An Engine starts child processes on a pty, accumulates their output into a
// per-session buffer, waits for caller-supplied markers in that buffer, and
// reclaims sessions explicitly or after a period of inactivity.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the tunables of an Engine. Zero fields fall back to defaults.
type Config struct {
	IdleTimeout     time.Duration
	ReapInterval    time.Duration
	PollInterval    time.Duration
	ReadChunkSize   int
	KillGracePeriod time.Duration
	LogDir          string
	Cols            int
	Rows            int
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = DefaultReapInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = DefaultReadChunkSize
	}
	if c.KillGracePeriod <= 0 {
		c.KillGracePeriod = DefaultKillGracePeriod
	}
	if c.LogDir == "" {
		c.LogDir = "."
	}
	if c.Cols <= 0 || c.Cols > MaxTerminalDimension {
		c.Cols = DefaultCols
	}
	if c.Rows <= 0 || c.Rows > MaxTerminalDimension {
		c.Rows = DefaultRows
	}
	return c
}

type Engine struct {
	store   *Store
	cfg     Config
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithRegisterer registers the engine's collectors on reg instead of a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.metrics = NewMetrics(reg)
	}
}

// WithClock replaces the clock used for activity tracking and idle checks.
// Wait timeouts always use wall-clock time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		store: NewStore(),
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.withDefaults()
	if e.metrics == nil {
		e.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

func (e *Engine) lookup(id int64) (*Session, error) {
	sess, ok := e.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return sess, nil
}

// Touch refreshes the activity timestamp of a session.
func (e *Engine) Touch(id int64) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.touch(e.now())
	return nil
}

// Shutdown terminates every stored session. It is the explicit replacement
// for exit hooks and must be called by the hosting process before exiting.
func (e *Engine) Shutdown(ctx context.Context) error {
	sessions := e.store.Snapshot()
	if len(sessions) == 0 {
		return nil
	}

	e.log.Info("shutting down sessions", zap.Int("count", len(sessions)))

	g, ctx := errgroup.WithContext(ctx)
	for _, sess := range sessions {
		id := sess.ID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := e.terminate(id, reasonShutdown)
			if errors.Is(err, ErrUnknownSession) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
