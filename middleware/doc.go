// Package middleware provides composable middleware for actor
// invocations.
//
// A [Middleware] is a function that wraps an invocation handler.
// Middleware are composed into a chain using [Chain] and applied before
// each actor operation executes. They are applied right-to-left: the
// first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs method, actor, duration, and outcome
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the invocation context after the configured duration
//   - [Tracing] — wraps the invocation in an OpenTelemetry span
//   - [Metrics] — records per-method duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., admission control).
package middleware
