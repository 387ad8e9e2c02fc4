package statuscheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Pinger models the minimal Redis capability we need for status checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BucketHeader checks an S3 bucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, bucket string) error
}

// Checker aggregates readiness checks for the dependencies a split job uses.
type Checker struct {
	redis     Pinger
	s3        BucketHeader
	s3Bucket  string
	outputDir string
}

// Options configures the Checker. Nil dependencies are reported as not
// configured, which counts as ready.
type Options struct {
	Redis     Pinger
	S3        BucketHeader
	S3Bucket  string
	OutputDir string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Ready     bool   `json:"ready"`
	Redis     Status `json:"redis"`
	S3        Status `json:"s3"`
	OutputDir Status `json:"output_dir"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{
		redis:     opts.Redis,
		s3:        opts.S3,
		s3Bucket:  opts.S3Bucket,
		outputDir: opts.OutputDir,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Redis:     c.checkRedis(ctx),
		S3:        c.checkS3(ctx),
		OutputDir: c.checkOutputDir(),
	}
	s.Ready = s.Redis.OK && s.S3.OK && s.OutputDir.OK
	return s
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: true, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3Bucket == "" {
		return Status{OK: true, Message: "Bucket not configured"}
	}
	if c.s3 == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.s3.HeadBucket(ctx, c.s3Bucket); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkOutputDir() Status {
	if c.outputDir == "" {
		return Status{OK: true, Message: "not configured"}
	}
	f, err := os.CreateTemp(c.outputDir, ".ready-*")
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return Status{OK: true, Message: "Writable: " + filepath.Clean(c.outputDir)}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
