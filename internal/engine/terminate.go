package engine

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type TerminateResult struct {
	ID     int64  `json:"session_id"`
	Forced bool   `json:"forced,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Terminate removes the session from the store, asks the process to exit and
// escalates to killing its process group after the grace period. The pty
// master is always closed. Escalation problems never fail the call; they are
// reported in the result note.
func (e *Engine) Terminate(id int64) (*TerminateResult, error) {
	return e.terminate(id, reasonExit)
}

func (e *Engine) terminate(id int64, reason string) (*TerminateResult, error) {
	sess, ok := e.store.Remove(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	e.metrics.SessionsActive.Dec()
	e.metrics.SessionsTerminated.WithLabelValues(reason).Inc()

	defer func() {
		if err := sess.closeTerminal(); err != nil {
			e.log.Debug("close terminal", zap.Int64("session", id), zap.Error(err))
		}
	}()

	res := &TerminateResult{ID: id}
	log := e.log.With(zap.Int64("session", id), zap.Int("pid", sess.PID), zap.String("reason", reason))

	if err := sess.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debug("sigterm", zap.Error(err))
	}

	select {
	case <-sess.exited:
		log.Info("session terminated")
		return res, nil
	case <-time.After(e.cfg.KillGracePeriod):
	}

	res.Forced = true
	e.metrics.Escalations.Inc()
	note := fmt.Errorf("%w (%s); killed process group %d", ErrTerminationTimeout, e.cfg.KillGracePeriod, sess.PGID)
	if err := unix.Kill(-sess.PGID, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		note = fmt.Errorf("%w (%s); killing process group %d: %w", ErrTerminationTimeout, e.cfg.KillGracePeriod, sess.PGID, err)
	}
	res.Note = note.Error()
	log.Warn("session termination escalated", zap.Error(note))
	return res, nil
}
