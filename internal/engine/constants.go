package engine

import (
	"math"
	"time"
)

const (
	DefaultReadChunkSize   = 4096
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultWaitTimeout     = 5 * time.Second
	DefaultKillGracePeriod = 5 * time.Second
	DefaultIdleTimeout     = time.Hour
	DefaultReapInterval    = time.Minute
	DefaultCols            = 80
	DefaultRows            = 24
	MaxTerminalDimension   = math.MaxUint16

	// drainTimeout bounds each read while preflush empties pending output.
	drainTimeout  = 10 * time.Millisecond
	// maxDrainReads caps a single preflush so a chatty process cannot pin it.
	maxDrainReads = 64

	logFilePrefix     = "interactive"
	logFileTimeFormat = "20060102-150405"
)
