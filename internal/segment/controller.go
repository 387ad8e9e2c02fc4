package segment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/patchsplit/internal/metrics"
)

// Segment is a run of content pages written as one output document.
type Segment struct {
	Index int   // 1-based output number
	Pages []int // 0-based source page indices, increasing
	Path  string
}

// Manifest lists output paths in flush order.
type Manifest []string

// Writer persists a segment of the source document at path.
type Writer interface {
	WriteSegment(ctx context.Context, pages []int, path string) error
}

// Controller accumulates content pages in document order and flushes a
// segment whenever a divider follows at least one content page. It is not
// safe for concurrent use; each run owns its own Controller.
type Controller struct {
	source   string
	writer   Writer
	pending  []int
	next     int
	last     int
	segments []Segment
}

// NewController creates a controller for one pass over source.
func NewController(source string, w Writer) *Controller {
	return &Controller{source: source, writer: w, next: 1, last: -1}
}

// Observe feeds the classification of the next page. Pages must arrive in
// strictly increasing order.
func (c *Controller) Observe(ctx context.Context, page int, divider bool) error {
	if page <= c.last {
		return fmt.Errorf("page %d observed after page %d", page, c.last)
	}
	c.last = page

	if !divider {
		metrics.IncPage("content")
		c.pending = append(c.pending, page)
		return nil
	}

	metrics.IncPage("divider")
	log.Debug().Str("source", c.source).Int("page", page).Int("pending", len(c.pending)).Msg("divider page")
	return c.flush(ctx)
}

// Finish flushes any remaining content pages and returns the manifest.
func (c *Controller) Finish(ctx context.Context) (Manifest, error) {
	if err := c.flush(ctx); err != nil {
		return c.Manifest(), err
	}
	return c.Manifest(), nil
}

// Manifest returns the paths of segments written so far.
func (c *Controller) Manifest() Manifest {
	m := make(Manifest, 0, len(c.segments))
	for _, s := range c.segments {
		m = append(m, s.Path)
	}
	return m
}

// flush writes pending pages as the next segment. An empty buffer is a
// no-op. A cancelled context stops the run before the write starts; once
// started, the write runs to completion.
func (c *Controller) flush(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	seg := Segment{Index: c.next, Pages: c.pending, Path: OutputPath(c.source, c.next)}
	if err := c.writer.WriteSegment(context.WithoutCancel(ctx), seg.Pages, seg.Path); err != nil {
		return &WriteError{Path: seg.Path, Pages: seg.Pages, Err: err}
	}

	metrics.IncSegment()
	log.Info().
		Str("source", c.source).
		Int("segment", seg.Index).
		Ints("pages", seg.Pages).
		Str("path", seg.Path).
		Msg("segment written")

	c.segments = append(c.segments, seg)
	c.next++
	c.pending = nil
	return nil
}
