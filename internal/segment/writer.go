package segment

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// PDFWriter builds segment documents from a source PDF with pdfcpu. The
// source is read once; every segment is an independent new document.
type PDFWriter struct {
	src  []byte
	conf *model.Configuration
}

// NewPDFWriter loads the source PDF into memory.
func NewPDFWriter(sourcePath string) (*PDFWriter, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFWriter{src: data, conf: conf}, nil
}

// WriteSegment writes exactly pages, in order, to path. Output goes to a
// temp file in the same directory and is renamed into place, so path never
// holds a partial document.
func (w *PDFWriter) WriteSegment(_ context.Context, pages []int, path string) error {
	if len(pages) == 0 {
		return fmt.Errorf("empty segment")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	sel := pageSelection(pages)
	if err := api.Trim(bytes.NewReader(w.src), tmp, sel, w.conf); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("pdfcpu trim %v: %w", sel, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}

	log.Debug().Str("path", path).Strs("selection", sel).Msg("segment persisted")
	return nil
}
