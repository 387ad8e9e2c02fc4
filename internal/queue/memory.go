package queue

import (
	"context"
	"time"
)

// Memory is a bounded in-process queue. Jobs are lost on restart.
type Memory struct {
	jobs chan Job
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 100
	}
	return &Memory{jobs: make(chan Job, size)}
}

func (q *Memory) Enqueue(_ context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrFull
	}
}

func (q *Memory) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

func (q *Memory) Len(context.Context) int { return len(q.jobs) }

// Drain removes and returns every queued job.
func (q *Memory) Drain() []Job {
	var out []Job
	for {
		select {
		case job := <-q.jobs:
			out = append(out, job)
		default:
			return out
		}
	}
}

func (q *Memory) Close() error { return nil }
