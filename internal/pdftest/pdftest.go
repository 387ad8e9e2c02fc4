// Package pdftest builds small scanned-style PDF fixtures for tests.
package pdftest

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Page size in pixels of an A4 sheet at 72 DPI.
const (
	PageWidth  = 595
	PageHeight = 842
)

// Blank returns a white page.
func Blank() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, PageWidth, PageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// Text returns a page with light-gray lines standing in for body text.
// They sit above the patch threshold and never form a mark.
func Text() *image.RGBA {
	img := Blank()
	for y := 80; y < PageHeight-80; y += 24 {
		r := image.Rect(60, y, PageWidth-60, y+8)
		draw.Draw(img, r, image.NewUniform(color.Gray{Y: 150}), image.Point{}, draw.Src)
	}
	return img
}

// Patch returns a page carrying a solid black patch mark.
func Patch() *image.RGBA {
	img := Blank()
	r := image.Rect(220, 340, 370, 490)
	draw.Draw(img, r, image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

// Tagged returns a Text page with n gray tally blocks in the top margin so
// a rendered copy can be traced back to its source page with Tag. The
// blocks are lighter than the patch threshold.
func Tagged(n int) *image.RGBA {
	img := Text()
	for i := 0; i < n; i++ {
		x := 60 + i*40
		r := image.Rect(x, 30, x+20, 50)
		draw.Draw(img, r, image.NewUniform(color.Gray{Y: 120}), image.Point{}, draw.Src)
	}
	return img
}

// Tag counts the tally blocks of a rendered Tagged page: the largest number
// of separate dark runs on any row. Plain Text and Patch pages read as 1,
// Blank as 0.
func Tag(img image.Image) int {
	b := img.Bounds()
	most := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		runs, length := 0, 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 220 {
				length++
				continue
			}
			if length >= 2 {
				runs++
			}
			length = 0
		}
		if length >= 2 {
			runs++
		}
		if runs > most {
			most = runs
		}
	}
	return most
}

// Build writes pages as PNG files and imports them into dir/name, one image
// per page, in order.
func Build(dir, name string, pages []image.Image) (string, error) {
	files := make([]string, 0, len(pages))
	for i, p := range pages {
		fn := filepath.Join(dir, fmt.Sprintf(".page-%03d.png", i))
		if err := writePNG(fn, p); err != nil {
			return "", err
		}
		files = append(files, fn)
	}

	out := filepath.Join(dir, name)
	if err := api.ImportImagesFile(files, out, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("import images: %w", err)
	}
	for _, fn := range files {
		_ = os.Remove(fn)
	}
	return out, nil
}

// PageCount returns the page count of the PDF at path.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
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
