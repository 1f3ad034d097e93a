package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schovi/interactive/internal/daemon"
	"github.com/schovi/interactive/internal/engine"
	"github.com/schovi/interactive/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve session tools over MCP",
	Long: `Run an MCP server exposing start_session, wait_for_output_or_prompt,
send_command, exit_session and get_active_sessions.

With --transport stdio (default) requests arrive on stdin and responses go to
stdout; sessions are terminated when stdin closes. With --transport
streamable-http the server answers JSON-RPC POSTs on http://<host>:<port>/mcp
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

const (
	transportStdio = "stdio"
	transportHTTP  = "streamable-http"
)

var (
	mcpTransportFlag string
	mcpHostFlag      string
	mcpPortFlag      int
)

func init() {
	addEngineFlags(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpTransportFlag, "transport", transportStdio, "Transport: stdio or streamable-http")
	mcpCmd.Flags().StringVar(&mcpHostFlag, "host", "127.0.0.1", "Listen host for streamable-http")
	mcpCmd.Flags().IntVar(&mcpPortFlag, "port", 8070, "Listen port for streamable-http")
}

func normalizeTransport(name string) (string, error) {
	switch name {
	case transportStdio:
		return transportStdio, nil
	case transportHTTP, "http":
		return transportHTTP, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want %s or %s)", name, transportStdio, transportHTTP)
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, err := normalizeTransport(mcpTransportFlag)
	if err != nil {
		return err
	}
	if mcpPortFlag <= 0 || mcpPortFlag > 65535 {
		return fmt.Errorf("invalid port %d", mcpPortFlag)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyEngineFlags(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	eng := engine.New(
		engine.WithConfig(cfg.EngineConfig()),
		engine.WithLogger(log.Named("engine")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go eng.RunReaper(ctx)

	tools := mcp.NewToolRegistry(eng)
	done := make(chan error, 1)
	stopTransport := func() {}

	switch transport {
	case transportHTTP:
		server := mcp.NewServer(tools, resolveVersion(), nil, nil, log.Named("mcp"))
		httpSrv := &http.Server{
			Addr:              net.JoinHostPort(mcpHostFlag, strconv.Itoa(mcpPortFlag)),
			Handler:           mcp.NewHTTPHandler(server),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				done <- err
				return
			}
			done <- nil
		}()
		stopTransport = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(closeCtx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
		}
		log.Info("mcp server ready",
			zap.String("transport", transport),
			zap.String("url", "http://"+httpSrv.Addr+mcp.HTTPPath),
			zap.Duration("idle_timeout", cfg.IdleTimeout()),
		)
	default:
		server := mcp.NewServer(tools, resolveVersion(), os.Stdin, os.Stdout, log.Named("mcp"))
		go func() { done <- server.Run(ctx) }()
		log.Info("mcp server ready",
			zap.String("transport", transport),
			zap.Duration("idle_timeout", cfg.IdleTimeout()),
		)
	}

	select {
	case err = <-done:
	case <-ctx.Done():
		log.Info("mcp server interrupted")
	}
	stopTransport()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), daemon.ShutdownTimeout)
	defer cancel()
	if serr := eng.Shutdown(shutdownCtx); serr != nil {
		log.Error("shutdown", zap.Error(serr))
	}
	return err
}
