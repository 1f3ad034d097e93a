package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schovi/interactive/internal/config"
	"github.com/schovi/interactive/internal/daemon"
	"github.com/schovi/interactive/internal/engine"
)

var (
	daemonMetricsAddrFlag string
	daemonSocketDirFlag   string
	daemonIdleTimeoutFlag int
	daemonLogDirFlag      string
	daemonKillGraceFlag   time.Duration
)

var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Short:  "Run the interactive daemon (internal)",
	Hidden: true,
	RunE:   runDaemon,
}

func init() {
	addEngineFlags(daemonCmd)
	daemonCmd.Flags().StringVar(&daemonMetricsAddrFlag, "metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	daemonCmd.Flags().StringVar(&daemonSocketDirFlag, "socket-dir", "",
		"Directory for the socket and lock file (default ~/.interactive)")
}

// addEngineFlags registers the flags that override engine configuration.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&daemonIdleTimeoutFlag, "idle-timeout", 0,
		"Terminate sessions idle for longer than this many seconds")
	cmd.Flags().StringVar(&daemonLogDirFlag, "log-dir", "",
		"Directory for session log files")
	cmd.Flags().DurationVar(&daemonKillGraceFlag, "kill-grace", 0,
		"How long to wait after SIGTERM before killing the process group")
}

func applyEngineFlags(cfg *config.Config) error {
	if daemonIdleTimeoutFlag > 0 {
		cfg.IdleTimeoutSeconds = daemonIdleTimeoutFlag
	}
	if daemonLogDirFlag != "" {
		cfg.LogDir = daemonLogDirFlag
	}
	if daemonKillGraceFlag > 0 {
		cfg.KillGracePeriod = daemonKillGraceFlag
	}
	return cfg.Validate()
}

func runDaemon(cmd *cobra.Command, args []string) error {
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

	server, err := daemon.NewServer(
		daemon.WithLogger(log),
		daemon.WithSocketDir(daemonSocketDirFlag),
		daemon.WithMetricsAddr(daemonMetricsAddrFlag),
		daemon.WithEngineOptions(engine.WithConfig(cfg.EngineConfig())),
	)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), daemon.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sig := <-sigCh
		log.Info("shutting down daemon", zap.Stringer("signal", sig))
		shutdown()
	}()

	err = server.Start()
	switch {
	case errors.Is(err, daemon.ErrAlreadyRunning):
		log.Info("daemon already running")
		return nil
	case err != nil:
		shutdown()
		return err
	}
	// Start returns nil only once Shutdown has begun; let it finish.
	<-stopped
	return nil
}
