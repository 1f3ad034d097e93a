package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
)

type SendOptions struct {
	Newline  bool
	Preflush bool
}

// Send writes text to the session's terminal. With Preflush set, pending
// output is pulled in and both cursors jump to the end of the buffer first,
// so the next wait only reports output produced after this call.
func (e *Engine) Send(ctx context.Context, id int64, text string, opts SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}
	sess.touch(e.now())

	if opts.Preflush {
		if err := e.drain(sess); errors.Is(err, ErrUnknownSession) {
			return err
		}
		sess.advanceToEnd()
	}

	data := text
	if opts.Newline {
		data += "\n"
	}

	if _, err := sess.ptmx.WriteString(data); err != nil {
		if sess.closed.Load() || errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("%w: %d (terminal closed)", ErrUnknownSession, id)
		}
		return fmt.Errorf("%w: session %d: %w", ErrWriteFailed, id, err)
	}
	e.metrics.InputsSent.Inc()
	return nil
}
