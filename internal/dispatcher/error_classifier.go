package dispatcher

import (
	"context"
	"errors"

	"github.com/local/patchsplit/internal/segment"
)

// Error kinds recorded in job metadata.
const (
	KindCancelled = "cancelled"
	KindSource    = "source"
	KindOpen      = "open"
	KindRender    = "render"
	KindWrite     = "write"
	KindPublish   = "publish"
	KindInternal  = "internal"
)

// errorKind maps a job failure to the kind reported to clients.
func errorKind(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return KindSource
	}
	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return KindPublish
	}

	var openErr *segment.OpenError
	if errors.As(err, &openErr) {
		return KindOpen
	}
	var renderErr *segment.RenderError
	if errors.As(err, &renderErr) {
		return KindRender
	}
	var writeErr *segment.WriteError
	if errors.As(err, &writeErr) {
		return KindWrite
	}

	return KindInternal
}
