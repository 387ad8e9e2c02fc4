package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisQueue implements Redis Streams + consumer groups so several service
// instances can share one job stream.
type RedisQueue struct {
	client   *redis.Client
	Stream   string
	Group    string
	Consumer string
	// MaxLen trims the stream to roughly this many entries on every add.
	// Entries are acked on read, so only the newest matter.
	MaxLen int64
}

// DefaultMaxLen is the approximate stream cap used by NewRedisQueue.
const DefaultMaxLen = 10000

// NewRedisQueue connects to Redis and ensures the stream and group exist.
func NewRedisQueue(redisURL, stream, group string) (*RedisQueue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return connectRedisQueue(redis.NewClient(opt), stream, group)
}

// connectRedisQueue takes ownership of c: it is closed when setup fails.
func connectRedisQueue(c *redis.Client, stream, group string) (*RedisQueue, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	q := newRedisQueue(c, stream, group)
	// Ensure consumer group exists (MKSTREAM creates stream if missing)
	if err := c.XGroupCreateMkStream(ctx, q.Stream, q.Group, "$").Err(); err != nil && !isBusyGroupErr(err) {
		_ = c.Close()
		return nil, fmt.Errorf("xgroup create: %w", err)
	}
	return q, nil
}

func newRedisQueue(c *redis.Client, stream, group string) *RedisQueue {
	if stream == "" {
		stream = "patchsplit:jobs"
	}
	if group == "" {
		group = "splitters"
	}
	host, _ := os.Hostname()
	return &RedisQueue{
		client:   c,
		Stream:   stream,
		Group:    group,
		Consumer: fmt.Sprintf("%s-%d", host, os.Getpid()),
		MaxLen:   DefaultMaxLen,
	}
}

func isBusyGroupErr(err error) bool {
	if err == nil {
		return false
	}
	// go-redis returns the server's error string
	return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error { return q.client.Close() }

// Ping checks redis connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue adds a job to the stream as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.XAdd(ctx, q.addArgs(payload)).Err()
}

func (q *RedisQueue) addArgs(payload []byte) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: q.Stream,
		Values: map[string]any{"data": string(payload)},
	}
	if q.MaxLen > 0 {
		args.MaxLen = q.MaxLen
		args.Approx = true
	}
	return args
}

// Dequeue reads one message from the consumer group and ACKs it immediately.
// A job whose worker dies mid-run is not redelivered; its status stays
// "processing" until the status TTL expires.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.Group,
		Consumer: q.Consumer,
		Streams:  []string{q.Stream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, nil
	}
	msg := res[0].Messages[0]
	if err := q.client.XAck(ctx, q.Stream, q.Group, msg.ID).Err(); err != nil {
		return nil, fmt.Errorf("xack %s: %w", msg.ID, err)
	}
	return decodeMessage(msg)
}

func decodeMessage(msg redis.XMessage) (*Job, error) {
	var data []byte
	switch t := msg.Values["data"].(type) {
	case string:
		data = []byte(t)
	case []byte:
		data = t
	default:
		return nil, fmt.Errorf("message %s has no data field", msg.ID)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", msg.ID, err)
	}
	return &job, nil
}

// Len returns how many entries the group has not read yet; 0 on error.
func (q *RedisQueue) Len(ctx context.Context) int {
	groups, err := q.client.XInfoGroups(ctx, q.Stream).Result()
	if err != nil {
		return 0
	}
	for _, g := range groups {
		if g.Name == q.Group {
			return int(g.Lag)
		}
	}
	return 0
}
