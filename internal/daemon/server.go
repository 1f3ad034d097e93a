package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/schovi/interactive/internal/engine"
)

var ErrAlreadyRunning = errors.New("daemon already running")

type Server struct {
	engine      *engine.Engine
	log         *zap.Logger
	registry    *prometheus.Registry
	socketDir   string
	metricsAddr string
	engineOpts  []engine.Option

	mu         sync.Mutex
	listener   net.Listener
	metricsSrv *http.Server
	lock       *flock.Flock
	cancel     context.CancelFunc
	closed     bool
}

type ServerOption func(*Server)

func WithSocketDir(dir string) ServerOption {
	return func(s *Server) {
		s.socketDir = dir
	}
}

func WithLogger(log *zap.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetricsAddr serves Prometheus metrics on addr under /metrics.
func WithMetricsAddr(addr string) ServerOption {
	return func(s *Server) {
		s.metricsAddr = addr
	}
}

func WithEngineOptions(opts ...engine.Option) ServerOption {
	return func(s *Server) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

func DefaultSocketDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, stateDirName), nil
}

func SocketPath() string {
	dir, _ := DefaultSocketDir()
	return filepath.Join(dir, socketName)
}

func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		log:      zap.NewNop(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.socketDir == "" {
		dir, err := DefaultSocketDir()
		if err != nil {
			return nil, err
		}
		s.socketDir = dir
	}
	if err := os.MkdirAll(s.socketDir, 0700); err != nil {
		return nil, err
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineOpts := append([]engine.Option{
		engine.WithLogger(s.log.Named("engine")),
		engine.WithRegisterer(s.registry),
	}, s.engineOpts...)
	s.engine = engine.New(engineOpts...)

	return s, nil
}

func (s *Server) socketPath() string {
	return filepath.Join(s.socketDir, socketName)
}

func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Start takes the daemon lock, listens on the socket and serves requests
// until Shutdown is called.
func (s *Server) Start() error {
	lock := flock.New(filepath.Join(s.socketDir, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}

	sockPath := s.socketPath()
	os.Remove(sockPath)

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		listener.Close()
		_ = lock.Unlock()
		return nil
	}
	s.listener = listener
	s.lock = lock
	s.cancel = cancel
	s.mu.Unlock()

	go s.engine.RunReaper(ctx)
	if s.metricsAddr != "" {
		s.serveMetrics()
	}

	s.log.Info("daemon listening",
		zap.String("socket", sockPath),
		zap.Duration("idle_timeout", s.engine.Config().IdleTimeout),
		zap.Int("pid", os.Getpid()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              s.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.metricsSrv = srv
	s.mu.Unlock()

	go func() {
		s.log.Info("serving metrics", zap.String("addr", s.metricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting connections, terminates every session and
// releases the socket and lock.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener, metricsSrv, lock, cancel := s.listener, s.metricsSrv, s.lock, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		listener.Close()
	}

	var errs []error
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if err := s.engine.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}
	if listener != nil {
		os.Remove(s.socketPath())
	}
	if lock != nil {
		_ = lock.Unlock()
	}

	s.log.Info("daemon stopped")
	return errors.Join(errs...)
}

type Request struct {
	Action    string `json:"action"`
	SessionID int64  `json:"session_id,omitempty"`

	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	LogFile bool     `json:"log_file,omitempty"`

	Prompts           []string `json:"prompts,omitempty"`
	TimeoutSec        float64  `json:"timeout_sec,omitempty"`
	ReturnOutput      bool     `json:"return_output,omitempty"`
	ConsumeWhitespace bool     `json:"consume_whitespace,omitempty"`
	HeadLines         int      `json:"head_lines,omitempty"`
	TailLines         int      `json:"tail_lines,omitempty"`

	Input    string `json:"input,omitempty"`
	Newline  bool   `json:"newline,omitempty"`
	Preflush bool   `json:"preflush,omitempty"`
}

type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func errorResponse(err error) Response {
	return Response{Success: false, Error: err.Error(), Kind: engine.KindOf(err)}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.sendResponse(conn, Response{Success: false, Error: err.Error(), Kind: engine.KindInvalidArgument})
		return
	}

	var resp Response
	switch req.Action {
	case ActionStart:
		resp = s.handleStart(ctx, req)
	case ActionWait:
		resp = s.handleWait(ctx, req)
	case ActionSend:
		resp = s.handleSend(ctx, req)
	case ActionExit:
		resp = s.handleExit(req)
	case ActionList:
		resp = Response{Success: true, Data: s.engine.List()}
	case ActionInfo:
		resp = s.handleInfo(req)
	case ActionPing:
		resp = Response{Success: true, Data: "pong"}
	default:
		resp = Response{Success: false, Error: fmt.Sprintf("unknown action %q", req.Action), Kind: engine.KindInvalidArgument}
	}

	if !resp.Success {
		s.log.Debug("request failed",
			zap.String("action", req.Action),
			zap.Int64("session", req.SessionID),
			zap.String("kind", resp.Kind),
			zap.String("error", resp.Error))
	}
	s.sendResponse(conn, resp)
}

func (s *Server) sendResponse(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}

func (s *Server) handleStart(ctx context.Context, req Request) Response {
	res, err := s.engine.Start(ctx, engine.StartOptions{
		Command: req.Command,
		Args:    req.Args,
		LogFile: req.LogFile,
	})
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true, Data: res}
}

func (s *Server) handleWait(ctx context.Context, req Request) Response {
	res, err := s.engine.Wait(ctx, req.SessionID, engine.WaitOptions{
		Markers:           req.Prompts,
		Timeout:           time.Duration(req.TimeoutSec * float64(time.Second)),
		ReturnOutput:      req.ReturnOutput,
		ConsumeWhitespace: req.ConsumeWhitespace,
	})
	if res != nil && (req.HeadLines > 0 || req.TailLines > 0) {
		res.Output = LimitLines(res.Output, req.HeadLines, req.TailLines)
	}
	if err != nil {
		resp := errorResponse(err)
		if res != nil {
			resp.Data = res
		}
		return resp
	}
	return Response{Success: true, Data: res}
}

func (s *Server) handleSend(ctx context.Context, req Request) Response {
	err := s.engine.Send(ctx, req.SessionID, req.Input, engine.SendOptions{
		Newline:  req.Newline,
		Preflush: req.Preflush,
	})
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true}
}

func (s *Server) handleExit(req Request) Response {
	res, err := s.engine.Terminate(req.SessionID)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true, Data: res}
}

// handleInfo describes one session, or all of them when no id is given.
func (s *Server) handleInfo(req Request) Response {
	if req.SessionID == 0 {
		return Response{Success: true, Data: s.engine.InfoAll()}
	}
	info, err := s.engine.Info(req.SessionID)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true, Data: info}
}

// LimitLines keeps the first head or last tail lines of output. Head wins
// when both are set.
func LimitLines(output string, head, tail int) string {
	if output == "" {
		return ""
	}

	lines := strings.Split(output, "\n")

	if head > 0 {
		if head >= len(lines) {
			return output
		}
		return strings.Join(lines[:head], "\n")
	}

	if tail > 0 {
		if tail >= len(lines) {
			return output
		}
		return strings.Join(lines[len(lines)-tail:], "\n")
	}

	return output
}
