package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RunReaper terminates idle sessions every ReapInterval until ctx is done.
func (e *Engine) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ReapIdle()
		}
	}
}

// ReapIdle runs one reaper cycle and returns the ids it terminated. Sessions
// removed concurrently by an explicit exit are skipped.
func (e *Engine) ReapIdle() []int64 {
	now := e.now()

	var reaped []int64
	for _, sess := range e.store.Snapshot() {
		idle := now.Sub(sess.LastActivity())
		if idle <= e.cfg.IdleTimeout {
			continue
		}

		if _, err := e.terminate(sess.ID, reasonIdle); err != nil {
			if !errors.Is(err, ErrUnknownSession) {
				e.log.Warn("reap session", zap.Int64("session", sess.ID), zap.Error(err))
			}
			continue
		}
		e.log.Info("reaped idle session", zap.Int64("session", sess.ID), zap.Duration("idle", idle))
		reaped = append(reaped, sess.ID)
	}
	return reaped
}
