package session

import (
	"log/slog"
)

// Observer receives diagnostics from a Store. Store queries never log on
// their own; everything worth inspecting is reported here instead.
type Observer interface {
	Observe(op string, err error, attrs ...any)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Observe(string, error, ...any) {}

// LogObserver reports events to a structured logger. Failures are logged at
// warn level, everything else at debug level.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(op string, err error, attrs ...any) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Warn("session: "+op, append(attrs, "error", err)...)
		return
	}
	logger.Debug("session: "+op, attrs...)
}
