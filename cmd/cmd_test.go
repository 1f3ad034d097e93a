package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/schovi/interactive/internal/config"
	"github.com/schovi/interactive/internal/engine"
)

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSessionID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSessionID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSessionID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatListRow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	row := formatListRow(engine.SessionInfo{
		ID:            3,
		PID:           1234,
		Command:       "python3",
		Args:          []string{"-i"},
		Status:        engine.StatusRunning,
		BytesBuffered: 2048,
		LastActivity:  now.Add(-5 * time.Minute),
	}, now)

	cols := strings.Split(row, "\t")
	if len(cols) != 6 {
		t.Fatalf("got %d columns: %q", len(cols), row)
	}
	if cols[0] != "3" || cols[1] != "1234" || cols[2] != "running" {
		t.Errorf("unexpected leading columns: %q", cols[:3])
	}
	if cols[3] != "5 minutes ago" {
		t.Errorf("idle = %q, want 5 minutes ago", cols[3])
	}
	if cols[4] != "2.0 KiB" {
		t.Errorf("buffer = %q, want 2.0 KiB", cols[4])
	}
	if cols[5] != "python3 -i" {
		t.Errorf("command = %q", cols[5])
	}
}

func TestApplyEngineFlags(t *testing.T) {
	defer func() {
		daemonIdleTimeoutFlag, daemonLogDirFlag, daemonKillGraceFlag = 0, "", 0
	}()

	cfg := config.Default()
	daemonIdleTimeoutFlag = 30
	daemonLogDirFlag = "/tmp/logs"
	daemonKillGraceFlag = time.Second

	if err := applyEngineFlags(cfg); err != nil {
		t.Fatalf("applyEngineFlags: %v", err)
	}
	if cfg.IdleTimeout() != 30*time.Second {
		t.Errorf("idle timeout = %s", cfg.IdleTimeout())
	}
	if cfg.LogDir != "/tmp/logs" || cfg.KillGracePeriod != time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestNormalizeTransport(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"stdio", transportStdio, false},
		{"streamable-http", transportHTTP, false},
		{"http", transportHTTP, false},
		{"sse", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeTransport(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("normalizeTransport(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeTransport(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
