package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/patchsplit/internal/detect"
	"github.com/local/patchsplit/internal/filetype"
	"github.com/local/patchsplit/internal/metrics"
	"github.com/local/patchsplit/internal/raster"
)

// PageClassifier decides whether a rendered page is a divider.
type PageClassifier interface {
	IsDivider(img image.Image, mode detect.Mode) bool
}

// WriterFactory creates the segment writer for one source document.
type WriterFactory func(sourcePath string) (Writer, error)

// PDFWriters creates pdfcpu-backed writers.
func PDFWriters(sourcePath string) (Writer, error) { return NewPDFWriter(sourcePath) }

// Options configures a Splitter. Zero fields select defaults.
type Options struct {
	Opener     raster.Opener
	Classifier PageClassifier
	Writers    WriterFactory
	// Workers bounds concurrent page rendering and detection.
	Workers int
	// SkipTypeCheck disables content sniffing of the source.
	SkipTypeCheck bool
}

// Splitter runs segmentation passes. It holds no per-run state, so one
// Splitter may serve many documents concurrently.
type Splitter struct {
	opts Options
}

// New creates a Splitter.
func New(opts Options) *Splitter {
	if opts.Opener == nil {
		opts.Opener = raster.Fitz
	}
	if opts.Classifier == nil {
		opts.Classifier = detect.NewClassifier(nil, nil)
	}
	if opts.Writers == nil {
		opts.Writers = PDFWriters
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Splitter{opts: opts}
}

type pageResult struct {
	index   int
	divider bool
}

// Split segments the document at sourcePath. On failure it returns the
// manifest of segments already written alongside the error.
func (s *Splitter) Split(ctx context.Context, sourcePath string, mode detect.Mode) (Manifest, error) {
	start := time.Now()
	m, err := s.split(ctx, sourcePath, mode)
	metrics.ObserveSplit(err, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("source", sourcePath).Strs("partial_manifest", m).Msg("split failed")
		return m, err
	}
	log.Info().
		Str("source", sourcePath).
		Str("mode", mode.String()).
		Int("segments", len(m)).
		Dur("elapsed", time.Since(start)).
		Msg("split complete")
	return m, nil
}

func (s *Splitter) split(ctx context.Context, sourcePath string, mode detect.Mode) (Manifest, error) {
	if !s.opts.SkipTypeCheck {
		if err := filetype.New().RequirePDF(sourcePath); err != nil {
			return Manifest{}, &OpenError{Path: sourcePath, Err: err}
		}
	}

	doc, err := s.opts.Opener.Open(sourcePath)
	if err != nil {
		return Manifest{}, &OpenError{Path: sourcePath, Err: err}
	}
	defer doc.Close()

	w, err := s.opts.Writers(sourcePath)
	if err != nil {
		return Manifest{}, &OpenError{Path: sourcePath, Err: err}
	}

	total := doc.NumPage()
	log.Info().Str("source", sourcePath).Int("pages", total).Str("mode", mode.String()).Msg("split started")

	ctrl := NewController(sourcePath, w)
	if err := s.classify(ctx, sourcePath, doc, mode, ctrl); err != nil {
		return ctrl.Manifest(), err
	}
	return ctrl.Finish(ctx)
}

// classify renders and classifies pages on a bounded worker pool and feeds
// the results to ctrl strictly in page order through an index-keyed buffer.
func (s *Splitter) classify(ctx context.Context, sourcePath string, doc raster.Document, mode detect.Mode, ctrl *Controller) error {
	total := doc.NumPage()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.opts.Workers)

	results := make(chan pageResult, s.opts.Workers)
	waitErr := make(chan error, 1)
	go func() {
		for i := 0; i < total; i++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				img, err := doc.Render(i)
				if err != nil {
					return &RenderError{Path: sourcePath, Page: i, Err: err}
				}
				divider := s.opts.Classifier.IsDivider(img, mode)
				select {
				case results <- pageResult{index: i, divider: divider}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		waitErr <- g.Wait()
		close(results)
	}()

	var (
		pending = make(map[int]bool)
		next    int
		runErr  error
	)
	for r := range results {
		if runErr != nil {
			continue
		}
		pending[r.index] = r.divider
		for {
			divider, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := ctrl.Observe(ctx, next, divider); err != nil {
				runErr = err
				cancel()
				break
			}
			next++
		}
	}

	gErr := <-waitErr
	if runErr != nil {
		return runErr
	}
	if gErr != nil {
		// Prefer the caller's cancellation over the derived one.
		if errors.Is(gErr, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return gErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if next != total {
		return fmt.Errorf("classified %d of %d pages", next, total)
	}
	return nil
}
