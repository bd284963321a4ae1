package parview

import "time"

// Config holds configuration for a parview Node.
type Config struct {
	// FrameWidth is the default rendered frame width in pixels.
	FrameWidth int

	// FrameHeight is the default rendered frame height in pixels.
	FrameHeight int

	// RenderConcurrency is the number of goroutines a raycaster uses
	// for scanline-parallel rendering.
	RenderConcurrency int

	// HeartbeatInterval is how often workers report liveness to the
	// cluster store.
	HeartbeatInterval time.Duration

	// StaleWorkerThreshold is how long before a worker without a
	// heartbeat is considered dead and eligible for reaping.
	StaleWorkerThreshold time.Duration

	// SetupTimeout bounds the one-time actor setup call (block load +
	// pipeline construction).
	SetupTimeout time.Duration

	// RenderTimeout bounds a single frame render invocation.
	RenderTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FrameWidth:           800,
		FrameHeight:          600,
		RenderConcurrency:    8,
		HeartbeatInterval:    10 * time.Second,
		StaleWorkerThreshold: 30 * time.Second,
		SetupTimeout:         2 * time.Minute,
		RenderTimeout:        30 * time.Second,
		ShutdownTimeout:      30 * time.Second,
	}
}
