package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/schovi/interactive/internal/engine"
)

// Config holds all application configuration.
//
// Values are layered: Default, then the TOML file, then environment
// variables. Command-line flags are applied by the caller afterwards.
type Config struct {
	IdleTimeoutSeconds int           `toml:"idle_timeout_seconds" envconfig:"MCP_SESSION_TIMEOUT"`
	ReapInterval       time.Duration `toml:"reap_interval" envconfig:"INTERACTIVE_REAP_INTERVAL"`
	PollInterval       time.Duration `toml:"poll_interval" envconfig:"INTERACTIVE_POLL_INTERVAL"`
	ReadChunkSize      int           `toml:"read_chunk_size" envconfig:"INTERACTIVE_READ_CHUNK_SIZE"`
	KillGracePeriod    time.Duration `toml:"kill_grace_period" envconfig:"INTERACTIVE_KILL_GRACE"`
	LogDir             string        `toml:"log_dir" envconfig:"INTERACTIVE_LOG_DIR"`
	Cols               int           `toml:"cols" envconfig:"INTERACTIVE_COLS"`
	Rows               int           `toml:"rows" envconfig:"INTERACTIVE_ROWS"`

	LogLevel       string `toml:"log_level" envconfig:"LOG_LEVEL"`
	LogDevelopment bool   `toml:"log_development" envconfig:"LOG_DEV"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		IdleTimeoutSeconds: int(engine.DefaultIdleTimeout / time.Second),
		ReapInterval:       engine.DefaultReapInterval,
		PollInterval:       engine.DefaultPollInterval,
		ReadChunkSize:      engine.DefaultReadChunkSize,
		KillGracePeriod:    engine.DefaultKillGracePeriod,
		LogDir:             ".",
		Cols:               engine.DefaultCols,
		Rows:               engine.DefaultRows,
		LogLevel:           "info",
	}
}

// DefaultPath returns ~/.interactive/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".interactive", "config.toml"), nil
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path means DefaultPath, which may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := cfg.loadFile(path); err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.IdleTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("idle timeout must be positive, got %d", c.IdleTimeoutSeconds))
	}
	for name, d := range map[string]time.Duration{
		"reap interval":     c.ReapInterval,
		"poll interval":     c.PollInterval,
		"kill grace period": c.KillGracePeriod,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.ReadChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("read chunk size must be positive, got %d", c.ReadChunkSize))
	}
	if c.Cols <= 0 || c.Rows <= 0 || c.Cols > engine.MaxTerminalDimension || c.Rows > engine.MaxTerminalDimension {
		errs = append(errs, fmt.Errorf("terminal size must be within 1..%d, got %dx%d",
			engine.MaxTerminalDimension, c.Cols, c.Rows))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log directory must not be empty"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	return errors.Join(errs...)
}

// IdleTimeout returns the idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// EngineConfig converts the configuration into engine tunables.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		IdleTimeout:     c.IdleTimeout(),
		ReapInterval:    c.ReapInterval,
		PollInterval:    c.PollInterval,
		ReadChunkSize:   c.ReadChunkSize,
		KillGracePeriod: c.KillGracePeriod,
		LogDir:          c.LogDir,
		Cols:            c.Cols,
		Rows:            c.Rows,
	}
}
