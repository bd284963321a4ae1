package client

import (
	"log/slog"
	"time"

	"github.com/jjones-jr/parview/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the authentication token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithFormat sets the wire format for frame encoding.
// Supported values: "json" (default), "msgpack". Interactive clients
// should prefer msgpack so the float32 pixel buffers stay binary.
func WithFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithReconnect enables automatic reconnection: up to maxRetries
// attempts with exponential delays starting at baseDelay.
func WithReconnect(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.reconnect = true
		c.maxRetries = maxRetries
		c.bo = backoff.NewExponential(baseDelay, 30*time.Second)
	}
}

// WithBackoff replaces the reconnect delay strategy.
func WithBackoff(bo backoff.Strategy) Option {
	return func(c *Client) { c.bo = bo }
}
