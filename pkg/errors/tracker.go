package errors

import (
	"context"
)

// Tracker reports errors and messages to an external monitoring service.
// The noop implementation is used when tracking is disabled.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// Flush blocks until pending events have been delivered or ctx expires.
	Flush(ctx context.Context) error
}

// Level is the severity attached to a captured event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}
