package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// collect performs one read attempt on the session's terminal, returning as
// soon as data arrives or after wait elapses. Read bytes are appended to the
// buffer and mirrored to the log file; cursors are left untouched.
func (e *Engine) collect(sess *Session, wait time.Duration) (int, error) {
	sess.readMu.Lock()
	defer sess.readMu.Unlock()

	if err := sess.ptmx.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return 0, classifyReadErr(sess, err)
	}

	if len(sess.scratch) == 0 {
		sess.scratch = make([]byte, e.cfg.ReadChunkSize)
	}
	chunk := sess.scratch
	n, err := sess.ptmx.Read(chunk)
	if n > 0 {
		sess.mu.Lock()
		sess.buf = append(sess.buf, chunk[:n]...)
		sess.mu.Unlock()

		e.metrics.BytesCollected.Add(float64(n))
		e.mirror(sess, chunk[:n])
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, nil
		}
		return n, classifyReadErr(sess, err)
	}
	return n, nil
}

// drain collects until the terminal has nothing pending.
func (e *Engine) drain(sess *Session) error {
	for range maxDrainReads {
		n, err := e.collect(sess, drainTimeout)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

func classifyReadErr(sess *Session, err error) error {
	if sess.closed.Load() || sess.removed.Load() || errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %d (terminal closed)", ErrUnknownSession, sess.ID)
	}
	return fmt.Errorf("%w: session %d: %w", ErrIOFailure, sess.ID, err)
}

// mirror appends data to the session log. The file is opened per chunk so
// every write reaches the kernel before collect returns.
func (e *Engine) mirror(sess *Session, data []byte) {
	if sess.LogPath == "" {
		return
	}

	f, err := os.OpenFile(sess.LogPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		e.log.Warn("open session log", zap.Int64("session", sess.ID), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		e.log.Warn("write session log", zap.Int64("session", sess.ID), zap.Error(err))
	}
}
