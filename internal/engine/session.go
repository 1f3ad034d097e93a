package engine

import (
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

type ProcessStatus string

const (
	StatusRunning ProcessStatus = "running"
	StatusZombie  ProcessStatus = "zombie"
)

// Session owns one child process and the master side of its pty.
type Session struct {
	ID        int64
	Command   string
	Args      []string
	PID       int
	PGID      int
	LogPath   string
	StartedAt time.Time

	cmd       *exec.Cmd
	ptmx      *os.File
	exited    chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	removed   atomic.Bool

	// readMu serializes reads from ptmx so chunks append in order. It also
	// guards scratch.
	readMu  sync.Mutex
	scratch []byte

	mu        sync.Mutex
	buf       []byte
	seekPos   int
	searchPos int

	lastActivity atomic.Int64
}

func (s *Session) touch(t time.Time) {
	s.lastActivity.Store(t.UnixNano())
}

// LastActivity reports the time of the most recent caller-initiated operation.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Status reports whether the child process is still running.
func (s *Session) Status() ProcessStatus {
	select {
	case <-s.exited:
		return StatusZombie
	default:
		return StatusRunning
	}
}

// Positions returns seek position, search position and buffer length.
func (s *Session) Positions() (seek, search, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekPos, s.searchPos, len(s.buf)
}

func (s *Session) closeTerminal() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.ptmx.Close()
	})
	return err
}

// advanceToEnd moves both cursors to the end of the buffer.
func (s *Session) advanceToEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekPos = len(s.buf)
	s.searchPos = len(s.buf)
}
