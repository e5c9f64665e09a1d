// Package noop provides an error tracker that discards everything. It keeps
// the tracking call sites unconditional when Sentry is disabled.
package noop

import (
	"context"

	"midas/pkg/errors"
)

type Tracker struct{}

func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

func (t *Tracker) Flush(ctx context.Context) error {
	return nil
}
