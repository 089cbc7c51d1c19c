package dbconn

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives one event per session operation once it completes.
// It is also the channel for failures a session cannot return to a caller:
// a commit that was turned into a rollback, or an auto-commit during Close.
type Observer interface {
	OnSessionOp(ctx context.Context, op string, table string, err error, dur time.Duration, provider string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, table string, err error, dur time.Duration, provider string)

// OnSessionOp implements Observer.
func (f ObserverFunc) OnSessionOp(ctx context.Context, op string, table string, err error, dur time.Duration, provider string) {
	if f == nil {
		return
	}
	f(ctx, op, table, err, dur, provider)
}

type nopObserver struct{}

func (nopObserver) OnSessionOp(context.Context, string, string, error, time.Duration, string) {}

// LogObserver reports operations to logger: Debug on success, Warn on failure.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return ObserverFunc(func(ctx context.Context, op, table string, err error, dur time.Duration, provider string) {
		attrs := []slog.Attr{
			slog.String("op", op),
			slog.String("provider", provider),
			slog.Duration("dur", dur),
		}
		if table != "" {
			attrs = append(attrs, slog.String("table", table))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, slog.LevelWarn, "dbconn operation failed", attrs...)
			return
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "dbconn operation", attrs...)
	})
}
