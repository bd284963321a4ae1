package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs invocation start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) error {
		logger.Debug("invocation started",
			slog.String("method", inv.Method),
			slog.String("actor_id", inv.Actor.String()),
			slog.Int("rank", inv.Rank),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("invocation failed",
				slog.String("method", inv.Method),
				slog.String("actor_id", inv.Actor.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("invocation completed",
				slog.String("method", inv.Method),
				slog.String("actor_id", inv.Actor.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
