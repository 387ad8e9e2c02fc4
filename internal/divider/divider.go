// Package divider draws printable divider sheets. A sheet carries a solid
// patch mark above a Code 128 symbol of caller data, so one printed page
// splits a batch in patch, barcode and either mode.
package divider

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// Sheet geometry in pixels of an A4 page at 72 DPI.
const (
	PageWidth  = 595
	PageHeight = 842

	patchSize     = 180
	patchTop      = 200
	barcodeWidth  = 560
	barcodeHeight = 100
	barcodeTop    = 560
)

// MaxData keeps Code 128 modules at least two pixels wide on the sheet.
const MaxData = 20

// ErrData is returned for data that cannot be printed on a sheet.
var ErrData = fmt.Errorf("divider data must be 1-%d printable ASCII characters", MaxData)

// Validate checks that data fits on a sheet.
func Validate(data string) error {
	if len(data) == 0 || len(data) > MaxData {
		return ErrData
	}
	for i := 0; i < len(data); i++ {
		if data[i] < 0x20 || data[i] > 0x7e {
			return ErrData
		}
	}
	return nil
}

// Sheet renders the divider page for data.
func Sheet(data string) (*image.RGBA, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	bm, err := oned.NewCode128Writer().Encode(data, gozxing.BarcodeFormat_CODE_128, barcodeWidth, barcodeHeight, nil)
	if err != nil {
		return nil, fmt.Errorf("encode code128: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, PageWidth, PageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	px := (PageWidth - patchSize) / 2
	draw.Draw(img, image.Rect(px, patchTop, px+patchSize, patchTop+patchSize), image.NewUniform(color.Black), image.Point{}, draw.Src)

	bx := (PageWidth - bm.GetWidth()) / 2
	if bx < 0 {
		return nil, ErrData
	}
	r := bm.Bounds().Add(image.Pt(bx, barcodeTop))
	draw.Draw(img, r, bm, bm.Bounds().Min, draw.Src)
	return img, nil
}

// WriteFile writes a one-page divider PDF for data to path. The document is
// assembled in a temp directory next to path and renamed into place.
func WriteFile(data, path string) error {
	img, err := Sheet(data)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(filepath.Dir(path), ".divider-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.RemoveAll(tmp)

	pngPath := filepath.Join(tmp, "sheet.png")
	if err := writePNG(pngPath, img); err != nil {
		return fmt.Errorf("write sheet image: %w", err)
	}
	pdfPath := filepath.Join(tmp, "sheet.pdf")
	if err := api.ImportImagesFile([]string{pngPath}, pdfPath, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("import sheet image: %w", err)
	}
	if err := os.Rename(pdfPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	log.Debug().Str("path", path).Str("data", data).Msg("divider sheet written")
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
