package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type WaitStatus string

const (
	StatusPromptDetected   WaitStatus = "prompt_detected"
	StatusTimeoutWithBytes WaitStatus = "prompt_timeout_with_bytes_received"
	StatusTimeoutNoBytes   WaitStatus = "prompt_timeout_no_bytes_received"
)

type WaitOptions struct {
	Markers           []string
	Timeout           time.Duration
	ReturnOutput      bool
	ConsumeWhitespace bool
}

type WaitResult struct {
	Status         WaitStatus `json:"status"`
	Marker         string     `json:"matched_prompt,omitempty"`
	Output         string     `json:"captured_output,omitempty"`
	RemainingBytes int        `json:"remaining_bytes"`
}

// Wait polls the session's terminal until one of opts.Markers appears after
// the search position or opts.Timeout elapses. A timeout is reported through
// the result status, not as an error.
//
// A session removed while the wait is in progress fails the wait with
// ErrUnknownSession on the next poll.
//
// If the terminal fails (typically because the child exited and hung up) the
// buffer is scanned once more; without a match the cursors advance as on a
// timeout and the partial result is returned together with the error.
func (e *Engine) Wait(ctx context.Context, id int64, opts WaitOptions) (*WaitResult, error) {
	if err := ValidateMarkers(opts.Markers); err != nil {
		return nil, err
	}
	sess, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.touch(e.now())

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	began := time.Now()
	deadline := began.Add(timeout)
	defer func() {
		e.metrics.WaitDuration.Observe(time.Since(began).Seconds())
	}()

	sess.mu.Lock()
	start := sess.seekPos
	sess.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sess.removed.Load() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
		}

		poll := min(e.cfg.PollInterval, time.Until(deadline))
		_, readErr := e.collect(sess, max(poll, time.Millisecond))
		if sess.removed.Load() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
		}

		if res, ok := sess.match(start, opts); ok {
			e.metrics.Waits.WithLabelValues(string(res.Status)).Inc()
			return res, nil
		}

		if readErr != nil {
			if errors.Is(readErr, ErrUnknownSession) {
				return nil, readErr
			}
			e.log.Debug("wait stopped on read failure", zap.Int64("session", id), zap.Error(readErr))
			res := sess.expire(start, opts)
			e.metrics.Waits.WithLabelValues(KindIOFailure).Inc()
			return res, readErr
		}

		if !time.Now().Before(deadline) {
			break
		}
	}

	res := sess.expire(start, opts)
	e.metrics.Waits.WithLabelValues(string(res.Status)).Inc()
	return res, nil
}

// match scans for the earliest marker and, on success, advances both cursors
// past it. The seek position never moves backwards, even when the match lies
// inside output already reported by an earlier timeout.
func (s *Session) match(start int, opts WaitOptions) (*WaitResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, marker := findEarliest(s.buf, s.searchPos, opts.Markers)
	if idx < 0 {
		return nil, false
	}

	end := idx + len(marker)
	if opts.ConsumeWhitespace {
		end = skipWhitespace(s.buf, end)
	}
	s.seekPos = max(s.seekPos, end)
	s.searchPos = s.seekPos

	res := &WaitResult{
		Status:         StatusPromptDetected,
		Marker:         marker,
		RemainingBytes: len(s.buf) - s.seekPos,
	}
	if opts.ReturnOutput {
		res.Output = string(s.buf[start:s.seekPos])
	}
	return res, true
}

// expire moves the seek position to the end of the buffer and leaves the
// search position alone so a later wait can still match timed-out output.
func (s *Session) expire(start int, opts WaitOptions) *WaitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seekPos = len(s.buf)

	res := &WaitResult{Status: StatusTimeoutNoBytes}
	if s.seekPos > start {
		res.Status = StatusTimeoutWithBytes
	}
	if opts.ReturnOutput {
		res.Output = string(s.buf[start:s.seekPos])
	}
	return res
}
