package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/patchsplit/internal/dispatcher"
	"github.com/local/patchsplit/internal/divider"
	"github.com/local/patchsplit/internal/metrics"
	"github.com/local/patchsplit/internal/statuscheck"
	"github.com/local/patchsplit/internal/store"
)

// Submitter enqueues split jobs.
type Submitter interface {
	Submit(ctx context.Context, ref, mode string) (string, error)
}

// Readiness reports whether the service's dependencies are usable.
type Readiness interface {
	Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
	Jobs   Submitter
	Status store.StatusStore
	// Ready is optional; without it /ready always succeeds.
	Ready Readiness
	// UploadDir receives files posted to /split/upload; "uploads" when empty.
	UploadDir string
	// MaxUploadBytes caps a /split/upload request body; 256MB when zero.
	MaxUploadBytes int64
}

const defaultMaxUpload = 256 << 20

type Server struct {
	deps Dependencies
}

func New(deps Dependencies) *Server {
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/split", s.handleSplit)
	mux.HandleFunc("/split/upload", s.handleUpload)
	mux.HandleFunc("/jobs/", s.handleJob)
	mux.HandleFunc("/download/", s.handleDownload)
	mux.HandleFunc("/divider", s.handleDivider)
	mux.Handle("/metrics", metrics.Handler())
}

type splitReq struct {
	PDFPath string `json:"pdf_path"`
	Mode    string `json:"mode"`
}

type splitResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req splitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	jobID, err := s.deps.Jobs.Submit(r.Context(), req.PDFPath, req.Mode)
	if err != nil {
		writeSubmitError(w, err, req.PDFPath)
		return
	}

	writeJSON(w, http.StatusCreated, splitResp{Status: "ok", JobID: jobID, Message: "split job created"})
}

// handleUpload accepts a multipart PDF upload (field "file", optional
// "mode"), stores it under UploadDir and queues it like /split.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := s.deps.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB in memory, the rest in temp files
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	uploadDir := s.deps.UploadDir
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	// one directory per upload so segment names follow the uploaded file name
	dir := filepath.Join(uploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		http.Error(w, "cannot create upload dir", http.StatusInternalServerError)
		return
	}
	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.pdf"
	}
	localPath := filepath.Join(dir, name)
	if err := saveUpload(localPath, file); err != nil {
		_ = os.RemoveAll(dir)
		log.Error().Err(err).Str("file", localPath).Msg("saving upload failed")
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}

	jobID, err := s.deps.Jobs.Submit(r.Context(), localPath, r.FormValue("mode"))
	if err != nil {
		_ = os.RemoveAll(dir)
		writeSubmitError(w, err, localPath)
		return
	}
	writeJSON(w, http.StatusCreated, splitResp{Status: "ok", JobID: jobID, Message: "upload job created"})
}

func saveUpload(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeSubmitError(w http.ResponseWriter, err error, ref string) {
	var ve *dispatcher.ValidationError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Message, http.StatusBadRequest)
	case errors.Is(err, dispatcher.ErrQueueFull), errors.Is(err, dispatcher.ErrStopped):
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Str("source", ref).Msg("submit failed")
		http.Error(w, "error", http.StatusInternalServerError)
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ready": true})
		return
	}
	sum := s.deps.Ready.Summary(r.Context())
	code := http.StatusOK
	if !sum.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	st, ok, err := s.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    st.Status == store.StatusSuccess,
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
		"metadata":   st.Metadata,
	})
}

// handleDownload serves segment N (1-based) of a finished job whose
// manifest lists local files: GET /download/{job_id}/{n}.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/download/"), "/")
	if len(parts) != 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 {
		http.Error(w, "invalid segment number", http.StatusBadRequest)
		return
	}
	st, ok, err := s.deps.Status.Get(r.Context(), parts[0])
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if st.Status != store.StatusSuccess {
		http.Error(w, "not ready", http.StatusConflict)
		return
	}
	manifest := stringsFromMeta(st.Metadata, "manifest")
	if n > len(manifest) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	p := manifest[n-1]
	if strings.Contains(p, "://") {
		http.Error(w, "segment is stored remotely: "+p, http.StatusBadRequest)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment(filepath.Base(p)))
	http.ServeContent(w, r, filepath.Base(p), time.Time{}, f)
}

// attachment quotes name per RFC 6266, falling back to RFC 2231 encoding
// for non-ASCII names.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

type dividerReq struct {
	Data string `json:"data"`
}

// handleDivider returns a printable divider sheet PDF for the posted data.
func (s *Server) handleDivider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req dividerReq
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := divider.Validate(req.Data); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tmp, err := os.MkdirTemp("", "divider-*")
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tmp)
	out := filepath.Join(tmp, "divider.pdf")
	if err := divider.WriteFile(req.Data, out); err != nil {
		log.Error().Err(err).Str("data", req.Data).Msg("divider generation failed")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	f, err := os.Open(out)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment("divider.pdf"))
	http.ServeContent(w, r, "divider.pdf", time.Time{}, f)
}

func stringsFromMeta(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
