package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/patchsplit/internal/detect"
	"github.com/local/patchsplit/internal/metrics"
	"github.com/local/patchsplit/internal/queue"
	"github.com/local/patchsplit/internal/segment"
	"github.com/local/patchsplit/internal/source"
	"github.com/local/patchsplit/internal/store"
)

// Splitter segments a local PDF.
type Splitter interface {
	Split(ctx context.Context, sourcePath string, mode detect.Mode) (segment.Manifest, error)
}

// Resolver fetches job sources and publishes their segments.
type Resolver interface {
	Fetch(ctx context.Context, ref string) (*source.Source, error)
	Publish(ctx context.Context, src *source.Source, m segment.Manifest) (segment.Manifest, error)
}

type Config struct {
	Concurrency int
	// PollTimeout bounds each blocking dequeue.
	PollTimeout time.Duration
}

// Worker runs split jobs from a queue on a fixed pool of goroutines and
// records their status.
type Worker struct {
	cfg      Config
	q        queue.Queue
	splitter Splitter
	resolver Resolver
	status   store.StatusStore

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	// poll ends dequeue loops; ctx cancels running jobs.
	poll       context.Context
	stopPoll   context.CancelFunc
	ctx        context.Context
	cancelJobs context.CancelFunc
}

func New(cfg Config, q queue.Queue, splitter Splitter, resolver Resolver, status store.StatusStore) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Second
	}
	poll, stopPoll := context.WithCancel(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:        cfg,
		q:          q,
		splitter:   splitter,
		resolver:   resolver,
		status:     status,
		poll:       poll,
		stopPoll:   stopPoll,
		ctx:        ctx,
		cancelJobs: cancel,
	}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
}

// Submit validates a request, records it as queued and enqueues it. It
// returns the new job ID.
func (w *Worker) Submit(ctx context.Context, ref, mode string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &ValidationError{Message: "pdf_path is required"}
	}
	m := strings.ToLower(strings.TrimSpace(mode))
	if m != "" && m != "patch" && m != "barcode" && m != "either" {
		return "", &ValidationError{Message: "mode must be patch, barcode or either"}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return "", ErrStopped
	}

	job := queue.Job{ID: uuid.NewString(), Ref: ref, Mode: detect.ParseMode(m).String()}
	now := time.Now()
	if err := w.status.Set(ctx, job.ID, store.Status{
		Status:   store.StatusQueued,
		Message:  "queued",
		Start:    &now,
		Metadata: map[string]any{"pdf_path": job.Ref, "mode": job.Mode},
	}); err != nil {
		return "", err
	}

	if err := w.q.Enqueue(ctx, job); err != nil {
		if errors.Is(err, queue.ErrFull) {
			err = ErrQueueFull
		}
		w.fail(ctx, job, now, err, nil)
		return "", err
	}
	metrics.SetQueued(w.q.Len(ctx))
	log.Info().Str("job_id", job.ID).Str("source", job.Ref).Str("mode", job.Mode).Msg("split job queued")
	return job.ID, nil
}

// drainer is implemented by queues whose pending jobs die with the process.
type drainer interface {
	Drain() []queue.Job
}

// Stop stops accepting jobs and waits for running ones. When ctx expires
// first, running jobs are cancelled. Jobs left in an in-process queue are
// marked failed.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.stopPoll()
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		w.cancelJobs()
		<-done
		err = ctx.Err()
	}
	w.cancelJobs()

	if d, ok := w.q.(drainer); ok {
		for _, job := range d.Drain() {
			w.fail(context.Background(), job, time.Now(), ErrStopped, nil)
		}
		metrics.SetQueued(0)
	}
	return err
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	log.Info().Int("worker", id).Msg("dispatcher worker started")
	for {
		if w.poll.Err() != nil {
			log.Info().Int("worker", id).Msg("dispatcher worker stopped")
			return
		}
		job, err := w.q.Dequeue(w.poll, w.cfg.PollTimeout)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			select {
			case <-time.After(500 * time.Millisecond):
			case <-w.poll.Done():
			}
			continue
		}
		if job == nil {
			continue
		}
		metrics.SetQueued(w.q.Len(w.poll))
		w.process(w.ctx, *job)
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	mode := detect.ParseMode(job.Mode)
	start := time.Now()
	logger := log.With().Str("job_id", job.ID).Str("source", job.Ref).Str("mode", job.Mode).Logger()
	logger.Info().Msg("split job started")

	w.set(ctx, job, store.Status{Status: store.StatusProcessing, Progress: 10, Message: "fetching source", Start: &start})

	src, err := w.resolver.Fetch(ctx, job.Ref)
	if err != nil {
		w.fail(ctx, job, start, &SourceError{Ref: job.Ref, Err: err}, nil)
		return
	}
	defer src.Cleanup()

	w.set(ctx, job, store.Status{Status: store.StatusProcessing, Progress: 30, Message: "splitting", Start: &start})

	m, err := w.splitter.Split(ctx, src.Local, mode)
	if err != nil {
		// Publish what was written so the partial manifest points at
		// reachable files.
		partial, pubErr := w.resolver.Publish(context.WithoutCancel(ctx), src, m)
		if pubErr != nil {
			logger.Warn().Err(pubErr).Msg("failed to publish partial segments")
		}
		w.fail(ctx, job, start, err, partial)
		return
	}

	w.set(ctx, job, store.Status{Status: store.StatusProcessing, Progress: 80, Message: "publishing segments", Start: &start})

	out, err := w.resolver.Publish(ctx, src, m)
	if err != nil {
		w.fail(ctx, job, start, &PublishError{Ref: job.Ref, Err: err}, out)
		return
	}

	end := time.Now()
	w.set(ctx, job, store.Status{
		Status:   store.StatusSuccess,
		Progress: 100,
		Message:  "completed",
		Start:    &start,
		End:      &end,
		Metadata: map[string]any{"manifest": []string(out), "segments": len(out)},
	})
	logger.Info().Int("segments", len(out)).Dur("duration", end.Sub(start)).Msg("split job completed")
}

func (w *Worker) fail(ctx context.Context, job queue.Job, start time.Time, err error, partial segment.Manifest) {
	end := time.Now()
	meta := map[string]any{"error_kind": errorKind(err)}
	if len(partial) > 0 {
		meta["partial_manifest"] = []string(partial)
	}
	log.Error().Err(err).Str("job_id", job.ID).Str("source", job.Ref).Strs("partial_manifest", partial).Msg("split job failed")
	w.set(ctx, job, store.Status{
		Status:   store.StatusFailed,
		Message:  err.Error(),
		Start:    &start,
		End:      &end,
		Metadata: meta,
	})
}

// set records st, keeping the job's request fields in its metadata. Status
// writes outlive job cancellation.
func (w *Worker) set(ctx context.Context, job queue.Job, st store.Status) {
	ctx = context.WithoutCancel(ctx)
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}
	st.Metadata["pdf_path"] = job.Ref
	st.Metadata["mode"] = job.Mode
	if err := w.status.Set(ctx, job.ID, st); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to update job status")
	}
}
