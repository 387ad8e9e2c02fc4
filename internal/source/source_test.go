package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/patchsplit/internal/segment"
	"github.com/local/patchsplit/internal/storage"
)

type memStore struct {
	objects map[string][]byte
	uploads []storage.Object
	failPut bool
}

func (m *memStore) Download(_ context.Context, obj storage.Object, dst string) error {
	data, ok := m.objects[obj.String()]
	if !ok {
		return errors.New("NoSuchKey")
	}
	return os.WriteFile(dst, data, 0o644)
}

func (m *memStore) Upload(_ context.Context, src string, obj storage.Object) error {
	if m.failPut {
		return errors.New("access denied")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	m.objects[obj.String()] = data
	m.uploads = append(m.uploads, obj)
	return nil
}

func TestFetchLocalRefs(t *testing.T) {
	r := &Resolver{}
	src, err := r.Fetch(context.Background(), "/data/in.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/data/in.pdf", src.Local)

	src, err = r.Fetch(context.Background(), "file:///data/in.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/data/in.pdf", src.Local)

	m, err := r.Publish(context.Background(), src, segment.Manifest{"/data/in_part1.pdf"})
	require.NoError(t, err)
	assert.Equal(t, segment.Manifest{"/data/in_part1.pdf"}, m)
}

func TestFetchAndPublishS3(t *testing.T) {
	store := &memStore{objects: map[string][]byte{"s3://scans/inbox/batch.pdf": []byte("%PDF-1.4")}}
	r := &Resolver{Store: store, TempDir: t.TempDir()}

	src, err := r.Fetch(context.Background(), "s3://scans/inbox/batch.pdf")
	require.NoError(t, err)
	assert.Equal(t, "batch.pdf", filepath.Base(src.Local))

	part1 := segment.OutputPath(src.Local, 1)
	part2 := segment.OutputPath(src.Local, 2)
	require.NoError(t, os.WriteFile(part1, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(part2, []byte("two"), 0o644))

	m, err := r.Publish(context.Background(), src, segment.Manifest{part1, part2})
	require.NoError(t, err)
	assert.Equal(t, segment.Manifest{"s3://scans/inbox/batch_part1.pdf", "s3://scans/inbox/batch_part2.pdf"}, m)
	assert.Equal(t, []byte("two"), store.objects["s3://scans/inbox/batch_part2.pdf"])

	src.Cleanup()
	_, err = os.Stat(filepath.Dir(src.Local))
	assert.True(t, os.IsNotExist(err))
}

func TestPublishS3RootKey(t *testing.T) {
	store := &memStore{objects: map[string][]byte{"s3://scans/batch.pdf": []byte("%PDF-1.4")}}
	r := &Resolver{Store: store, TempDir: t.TempDir()}
	src, err := r.Fetch(context.Background(), "s3://scans/batch.pdf")
	require.NoError(t, err)
	defer src.Cleanup()

	part := segment.OutputPath(src.Local, 1)
	require.NoError(t, os.WriteFile(part, []byte("one"), 0o644))
	m, err := r.Publish(context.Background(), src, segment.Manifest{part})
	require.NoError(t, err)
	assert.Equal(t, segment.Manifest{"s3://scans/batch_part1.pdf"}, m)
}

func TestFetchS3Errors(t *testing.T) {
	_, err := (&Resolver{}).Fetch(context.Background(), "s3://scans/x.pdf")
	assert.Error(t, err)

	tmp := t.TempDir()
	r := &Resolver{Store: &memStore{objects: map[string][]byte{}}, TempDir: tmp}
	_, err = r.Fetch(context.Background(), "s3://scans/missing.pdf")
	assert.Error(t, err)
	entries, _ := os.ReadDir(tmp)
	assert.Empty(t, entries)
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/scan.pdf" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	out := t.TempDir()
	r := &Resolver{OutputDir: out}
	src, err := r.Fetch(context.Background(), srv.URL+"/files/scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", filepath.Base(src.Local))
	data, err := os.ReadFile(src.Local)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	_, err = r.Fetch(context.Background(), srv.URL+"/nope.pdf")
	assert.Error(t, err)
}

func TestCleanupTemps(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, TempPrefix+"old")
	fresh := filepath.Join(dir, TempPrefix+"fresh")
	other := filepath.Join(dir, "unrelated")
	for _, d := range []string{old, fresh, other} {
		require.NoError(t, os.Mkdir(d, 0o755))
	}
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	assert.Equal(t, 1, CleanupTemps(dir, time.Hour))
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	assert.DirExists(t, fresh)
	assert.DirExists(t, other)
}

func TestCleanupSkipsSourcesInUse(t *testing.T) {
	root := t.TempDir()
	job := filepath.Join(root, TempPrefix+"job")
	require.NoError(t, os.Mkdir(job, 0o755))
	doc := filepath.Join(job, "scan.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4"), 0o644))

	r := &Resolver{}
	first, err := r.Fetch(context.Background(), doc)
	require.NoError(t, err)
	second, err := r.Fetch(context.Background(), "file://"+doc)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(job, past, past))

	assert.True(t, InUse(job))
	assert.Equal(t, 0, CleanupTemps(root, time.Hour))
	assert.DirExists(t, job)

	first.Cleanup()
	first.Cleanup()
	assert.True(t, InUse(job))
	assert.Equal(t, 0, CleanupTemps(root, time.Hour))

	second.Cleanup()
	assert.False(t, InUse(job))
	assert.Equal(t, 1, CleanupTemps(root, time.Hour))
	assert.NoDirExists(t, job)
}

func TestCleanupDirsWithoutPrefix(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "3f2a")
	fresh := filepath.Join(root, "9c1b")
	require.NoError(t, os.Mkdir(old, 0o755))
	require.NoError(t, os.Mkdir(fresh, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.pdf"), nil, 0o644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	assert.Equal(t, 1, CleanupDirs(root, "", 24*time.Hour))
	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)
	assert.FileExists(t, filepath.Join(root, "stray.pdf"))
	assert.Equal(t, 0, CleanupDirs(filepath.Join(root, "missing"), "", time.Hour))
}

func TestPublishFailureReturnsUploaded(t *testing.T) {
	store := &memStore{objects: map[string][]byte{"s3://scans/a/b.pdf": []byte("%PDF-1.4")}}
	r := &Resolver{Store: store, TempDir: t.TempDir()}
	src, err := r.Fetch(context.Background(), "s3://scans/a/b.pdf")
	require.NoError(t, err)
	defer src.Cleanup()

	part := segment.OutputPath(src.Local, 1)
	require.NoError(t, os.WriteFile(part, []byte("one"), 0o644))
	store.failPut = true
	m, err := r.Publish(context.Background(), src, segment.Manifest{part})
	assert.Error(t, err)
	assert.Empty(t, m)
	assert.Empty(t, store.uploads)
}
