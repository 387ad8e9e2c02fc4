package queue

import (
	"context"
	"errors"
	"time"
)

// ErrFull is returned by Enqueue when a bounded queue has no free slot.
var ErrFull = errors.New("job queue is full")

// Job is one split request as carried through the queue.
type Job struct {
	ID   string `json:"job_id"`
	Ref  string `json:"pdf_path"`
	Mode string `json:"mode"`
}

// Queue hands jobs from the HTTP layer to dispatcher workers. Dequeue
// returns (nil, nil) when nothing arrived within timeout.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	Len(ctx context.Context) int
	Close() error
}
