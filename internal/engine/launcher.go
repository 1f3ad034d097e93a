package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/creack/pty"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type StartOptions struct {
	Command string
	Args    []string
	LogFile bool
}

type StartResult struct {
	ID      int64  `json:"session_id"`
	PID     int    `json:"pid"`
	LogPath string `json:"log_path,omitempty"`
}

// Start launches opts.Command on a fresh pty and registers the session.
func (e *Engine) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateCommand(opts.Command); err != nil {
		return nil, err
	}

	sess, err := e.launch(opts)
	if err != nil {
		e.metrics.LaunchFailures.WithLabelValues(KindOf(err)).Inc()
		e.log.Warn("launch failed", zap.String("command", opts.Command), zap.Error(err))
		return nil, err
	}

	e.store.Insert(sess)
	e.metrics.SessionsStarted.Inc()
	e.metrics.SessionsActive.Inc()
	e.log.Info("session started",
		zap.Int64("session", sess.ID),
		zap.String("command", sess.Command),
		zap.Int("pid", sess.PID),
		zap.String("log_path", sess.LogPath),
	)

	return &StartResult{ID: sess.ID, PID: sess.PID, LogPath: sess.LogPath}, nil
}

func (e *Engine) launch(opts StartOptions) (*Session, error) {
	cmd := exec.Command(opts.Command, opts.Args...)
	if cmd.Err != nil {
		return nil, classifyStartErr(opts.Command, cmd.Err)
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	var logPath string
	if opts.LogFile {
		logPath = e.createLogFile(opts.Command)
	}

	ptmx, err := pty.StartWithAttrs(cmd,
		&pty.Winsize{Cols: uint16(e.cfg.Cols), Rows: uint16(e.cfg.Rows)},
		&syscall.SysProcAttr{Setsid: true, Setctty: true},
	)
	if err != nil {
		if logPath != "" {
			os.Remove(logPath)
		}
		return nil, classifyStartErr(opts.Command, err)
	}

	master, err := nonblocking(ptmx)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		if logPath != "" {
			os.Remove(logPath)
		}
		return nil, fmt.Errorf("%w: %q: %w", ErrLaunchFailed, opts.Command, err)
	}

	pid := cmd.Process.Pid
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		pgid = pid
	}

	now := e.now()
	sess := &Session{
		ID:        e.store.NextID(),
		Command:   opts.Command,
		Args:      append([]string(nil), opts.Args...),
		PID:       pid,
		PGID:      pgid,
		LogPath:   logPath,
		StartedAt: now,
		cmd:       cmd,
		ptmx:      master,
		scratch:   make([]byte, e.cfg.ReadChunkSize),
		exited:    make(chan struct{}),
	}
	sess.touch(now)

	go func() {
		_ = cmd.Wait()
		close(sess.exited)
	}()

	return sess, nil
}

// nonblocking replaces the pty master with a non-blocking duplicate. pty
// leaves the master in blocking mode once it has called Fd, and read
// deadlines only work on descriptors the runtime poller owns.
func nonblocking(ptmx *os.File) (*os.File, error) {
	defer ptmx.Close()

	fd, err := unix.Dup(int(ptmx.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup pty master: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set pty master non-blocking: %w", err)
	}
	unix.CloseOnExec(fd)
	return os.NewFile(uintptr(fd), ptmx.Name()), nil
}

func classifyStartErr(command string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrCommandNotFound, command)
	}
	return fmt.Errorf("%w: %q: %w", ErrLaunchFailed, command, err)
}

// createLogFile truncates the session's mirror file and returns its path, or
// "" when the file cannot be created.
func (e *Engine) createLogFile(command string) string {
	name := fmt.Sprintf("%s-%s-%s.log",
		logFilePrefix,
		filepath.Base(command),
		e.now().Format(logFileTimeFormat),
	)
	path := filepath.Join(e.cfg.LogDir, name)

	f, err := os.Create(path)
	if err != nil {
		e.log.Warn("log file not created", zap.String("path", path), zap.Error(err))
		return ""
	}
	f.Close()
	return path
}
