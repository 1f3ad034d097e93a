package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schovi/interactive/internal/config"
	"github.com/schovi/interactive/internal/daemon"
	"github.com/schovi/interactive/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Drive interactive programs (REPLs, debuggers, shells) through a pseudo-terminal",
	Long: `interactive runs programs such as python3, node, gdb or psql on a pseudo-terminal
and lets scripts and AI agents talk to them: send input, then wait until a prompt shows up.

Quick start:
  interactive start python3 -- -i           # Start a session, prints its id
  interactive wait 1 ">>> "                 # Wait for the Python prompt
  interactive send 1 "print(6*7)"           # Send a line
  interactive wait 1 ">>> "                 # Prints "42" and the next prompt
  interactive exit 1                        # Terminate the session

Run "interactive mcp" to serve the same operations as MCP tools over stdio.`,
	SilenceUsage: true,
}

var (
	configFlag   string
	logLevelFlag string
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.interactive/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(exitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers --config and the environment, then the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
	})
}

func connect() (*daemon.Client, error) {
	client := daemon.NewClient()
	if err := client.EnsureDaemon(); err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	return client, nil
}

func parseSessionID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return id, nil
}
