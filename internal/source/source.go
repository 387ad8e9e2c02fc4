package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/patchsplit/internal/segment"
	"github.com/local/patchsplit/internal/storage"
)

// TempPrefix names the per-job directories created for s3 sources.
const TempPrefix = "patchsplit-"

// DownloadPrefix names the per-job directories of http sources under
// OutputDir. Their segments live there too.
const DownloadPrefix = "dl-"

// ObjectStore transfers objects between S3 and local files.
type ObjectStore interface {
	Download(ctx context.Context, obj storage.Object, dst string) error
	Upload(ctx context.Context, src string, obj storage.Object) error
}

// Resolver turns a source reference into a local PDF path. Supported refs:
// plain filesystem paths, file://path, http(s):// URLs and s3://bucket/key.
type Resolver struct {
	// Store is required only for s3:// refs.
	Store ObjectStore
	// HTTP defaults to http.DefaultClient.
	HTTP *http.Client
	// TempDir holds s3 downloads; defaults to os.TempDir().
	TempDir string
	// OutputDir holds http downloads and their segments.
	OutputDir string
}

// Source is a resolved reference.
type Source struct {
	Ref   string
	Local string

	object *storage.Object
	tmpDir string
	heldIn string
}

// Fetch resolves ref, downloading remote documents. The directory of the
// local copy is marked in use until Cleanup.
func (r *Resolver) Fetch(ctx context.Context, ref string) (*Source, error) {
	var (
		src *Source
		err error
	)
	switch {
	case strings.HasPrefix(ref, "s3://"):
		src, err = r.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		src, err = r.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		src = &Source{Ref: ref, Local: strings.TrimPrefix(ref, "file://")}
	default:
		src = &Source{Ref: ref, Local: ref}
	}
	if err != nil {
		return nil, err
	}
	src.heldIn = filepath.Dir(src.Local)
	hold(src.heldIn)
	return src, nil
}

func (r *Resolver) fetchS3(ctx context.Context, ref string) (*Source, error) {
	obj, err := storage.ParseURI(ref)
	if err != nil {
		return nil, err
	}
	if r.Store == nil {
		return nil, fmt.Errorf("no object store configured for %s", ref)
	}
	dir, err := os.MkdirTemp(r.TempDir, TempPrefix+"*")
	if err != nil {
		return nil, err
	}
	local := filepath.Join(dir, localName(path.Base(obj.Key)))
	if err := r.Store.Download(ctx, obj, local); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &Source{Ref: ref, Local: local, object: &obj, tmpDir: dir}, nil
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref string) (*Source, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: http %d", ref, resp.StatusCode)
	}

	base := r.OutputDir
	if base == "" {
		base = "output"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(base, DownloadPrefix+"*")
	if err != nil {
		return nil, err
	}
	local := filepath.Join(dir, localName(path.Base(u.Path)))
	f, err := os.Create(local)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	log.Info().Str("url", ref).Str("file", local).Msg("downloaded source document")
	return &Source{Ref: ref, Local: local}, nil
}

// localName keeps the remote file name so segment names follow it.
func localName(base string) string {
	if base == "" || base == "." || base == "/" {
		return "document.pdf"
	}
	return base
}

// Publish makes the manifest visible at the source's origin. Segments of
// s3 sources are uploaded next to the source key and reported as s3:// URIs;
// other manifests are returned unchanged. On failure the URIs uploaded so
// far are returned with the error.
func (r *Resolver) Publish(ctx context.Context, src *Source, m segment.Manifest) (segment.Manifest, error) {
	if src.object == nil {
		return m, nil
	}
	out := make(segment.Manifest, 0, len(m))
	prefix := path.Dir(src.object.Key)
	for _, local := range m {
		key := path.Join(prefix, filepath.Base(local))
		if prefix == "." {
			key = filepath.Base(local)
		}
		obj := storage.Object{Bucket: src.object.Bucket, Key: key}
		if err := r.Store.Upload(ctx, local, obj); err != nil {
			return out, err
		}
		out = append(out, obj.String())
	}
	return out, nil
}

// Cleanup releases the source's directory and removes temporary downloads.
// Local and http sources are kept. It is safe to call more than once.
func (s *Source) Cleanup() {
	if s.heldIn != "" {
		release(s.heldIn)
		s.heldIn = ""
	}
	if s.tmpDir != "" {
		_ = os.RemoveAll(s.tmpDir)
		s.tmpDir = ""
	}
}
