package raster

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// DPI is the fixed rasterization resolution. Detector thresholds are tuned
// against it, so it must not vary per caller.
const DPI = 72.0

// Document is an opened, read-only source document.
type Document interface {
	NumPage() int
	// Render rasterizes the page at 0-based index i.
	Render(i int) (image.Image, error)
	Close() error
}

// Opener opens a path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Document, error)

func (f OpenerFunc) Open(path string) (Document, error) { return f(path) }

// Fitz opens documents with go-fitz (MuPDF).
var Fitz Opener = OpenerFunc(Open)

// Open opens a PDF with go-fitz.
func Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &fitzDoc{doc: doc, path: path}, nil
}

type fitzDoc struct {
	doc  *fitz.Document
	path string
}

func (d *fitzDoc) NumPage() int { return d.doc.NumPage() }

func (d *fitzDoc) Render(i int) (image.Image, error) {
	if i < 0 || i >= d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", i, d.doc.NumPage())
	}
	img, err := d.doc.ImageDPI(i, DPI)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", i, err)
	}

	log.Debug().
		Str("source", d.path).
		Int("page", i).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("rendered page")

	return img, nil
}

func (d *fitzDoc) Close() error { return d.doc.Close() }

// Gray converts img to grayscale using the ITU-R 601 luma weights of
// color.GrayModel. A *image.Gray is returned unchanged.
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
