package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ StatusStore = (*MemoryStatus)(nil)
	_ StatusStore = (*RedisStatus)(nil)
)

func TestMemoryStatusRoundTrip(t *testing.T) {
	s := NewMemoryStatus()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "job-1", Status{Status: StatusQueued, Start: &start}))
	require.NoError(t, s.Set(ctx, "job-1", Status{
		Status:   StatusSuccess,
		Progress: 100,
		Start:    &start,
		Metadata: map[string]any{"manifest": []string{"a_part1.pdf", "a_part2.pdf"}},
	}))

	st, ok, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.True(t, start.Equal(*st.Start))
	assert.Nil(t, st.End)
	assert.Equal(t, []any{"a_part1.pdf", "a_part2.pdf"}, st.Metadata["manifest"])
}

func TestMemoryStatusIsolatesCallers(t *testing.T) {
	s := NewMemoryStatus()
	meta := map[string]any{"mode": "patch"}
	require.NoError(t, s.Set(context.Background(), "j", Status{Status: StatusProcessing, Metadata: meta}))
	meta["mode"] = "barcode"

	st, _, err := s.Get(context.Background(), "j")
	require.NoError(t, err)
	assert.Equal(t, "patch", st.Metadata["mode"])
}

func TestRedisKey(t *testing.T) {
	s := &RedisStatus{keyNS: "split"}
	assert.Equal(t, "split:abc:status", s.key("abc"))
}
