package detect

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- synthetic pages ---

func blankPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func fillRect(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// frame draws a hollow rectangle of the given stroke thickness.
func frame(img draw.Image, r image.Rectangle, t int) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), color.Black)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), color.Black)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), color.Black)
	fillRect(img, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), color.Black)
}

func patchPage() *image.RGBA {
	img := blankPage(300, 400)
	fillRect(img, image.Rect(20, 20, 80, 80), color.Black)
	return img
}

func barcodePage(t *testing.T) *image.RGBA {
	t.Helper()
	return symbolPage(t, oned.NewCode128Writer(), "DIVIDER-0001", gozxing.BarcodeFormat_CODE_128, 560, 80)
}

// symbolPage draws one encoded symbol at (100,150) on a white 800x400 page.
func symbolPage(t *testing.T, w gozxing.Writer, contents string, format gozxing.BarcodeFormat, width, height int) *image.RGBA {
	t.Helper()
	bm, err := w.Encode(contents, format, width, height, nil)
	require.NoError(t, err)

	img := blankPage(800, 400)
	r := bm.Bounds().Add(image.Pt(100, 150))
	draw.Draw(img, r, bm, bm.Bounds().Min, draw.Src)
	return img
}

type stubDecoder struct {
	n     int
	err   error
	calls int
}

func (s *stubDecoder) Decode(image.Image) (int, error) {
	s.calls++
	return s.n, s.err
}

// --- binarization ---

func TestOtsuThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 10))
	for x := 0; x < 100; x++ {
		v := uint8(40)
		if x >= 50 {
			v = 210
		}
		for y := 0; y < 10; y++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	th := otsuThreshold(img)
	assert.GreaterOrEqual(t, th, uint8(40))
	assert.Less(t, th, uint8(210))

	bin := binarize(img, th)
	assert.Equal(t, uint8(0), bin.GrayAt(10, 5).Y)
	assert.Equal(t, uint8(255), bin.GrayAt(90, 5).Y)
}

func TestOtsuThresholdUniform(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	assert.Equal(t, uint8(0), otsuThreshold(img))

	bin := binarize(img, otsuThreshold(img))
	assert.Equal(t, uint8(255), bin.GrayAt(3, 3).Y)
}

func TestInverseBinary(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(1, 0, color.Gray{Y: 50})
	img.SetGray(2, 0, color.Gray{Y: 51})

	m := inverseBinary(img, 50)
	assert.True(t, m.at(0, 0))
	assert.True(t, m.at(1, 0))
	assert.False(t, m.at(2, 0))
}

// --- components ---

func externalComponents(img *image.Gray, threshold uint8) []Component {
	var comps []Component
	walkExternal(inverseBinary(img, threshold), func(c Component) bool {
		comps = append(comps, c)
		return true
	})
	return comps
}

func TestExternalComponentsSkipsNested(t *testing.T) {
	img := blankPage(400, 200)
	frame(img, image.Rect(20, 20, 320, 80), 3)
	fillRect(img, image.Rect(40, 30, 70, 60), color.Black)
	fillRect(img, image.Rect(340, 100, 360, 110), color.Black)

	comps := externalComponents(toGray(img), PatchThreshold)
	require.Len(t, comps, 2)
	assert.Equal(t, 300, comps[0].Width)
	assert.Equal(t, 60, comps[0].Height)
	assert.Equal(t, 20, comps[1].Width)
	assert.Equal(t, 10, comps[1].Height)
	assert.Equal(t, 200, comps[1].pixels)
}

func TestExternalComponentsDiagonalConnectivity(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	img.SetGray(2, 2, color.Gray{})
	img.SetGray(3, 3, color.Gray{})
	img.SetGray(4, 4, color.Gray{})

	comps := externalComponents(img, PatchThreshold)
	require.Len(t, comps, 1)
	assert.Equal(t, 3, comps[0].Width)
	assert.Equal(t, 3, comps[0].Height)
}

func TestExternalComponentsTouchingEdge(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	assert.Len(t, externalComponents(img, PatchThreshold), 1)
}

// --- patch detector ---

func TestHasPatch(t *testing.T) {
	tests := []struct {
		name string
		rect image.Rectangle
		want bool
	}{
		{name: "solid square", rect: image.Rect(20, 20, 80, 80), want: true},
		{name: "tall within ratio", rect: image.Rect(20, 20, 50, 79), want: true},
		{name: "too small", rect: image.Rect(20, 20, 40, 40), want: false},
		{name: "area at limit", rect: image.Rect(20, 20, 45, 40), want: false},
		{name: "wide bar", rect: image.Rect(20, 20, 220, 40), want: false},
		{name: "tall bar", rect: image.Rect(20, 20, 30, 220), want: false},
	}

	d := NewPatchDetector(PatchOptions{})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img := blankPage(300, 400)
			fillRect(img, tc.rect, color.Black)
			assert.Equal(t, tc.want, d.HasPatch(img))
		})
	}
}

func TestHasPatchIgnoresLightInk(t *testing.T) {
	img := blankPage(300, 400)
	fillRect(img, image.Rect(20, 20, 80, 80), color.Gray{Y: 120})
	assert.False(t, NewPatchDetector(PatchOptions{}).HasPatch(img))
}

func TestHasPatchIgnoresMarkInsideHole(t *testing.T) {
	img := blankPage(400, 200)
	frame(img, image.Rect(20, 20, 320, 80), 3)
	fillRect(img, image.Rect(40, 30, 70, 60), color.Black)
	assert.False(t, NewPatchDetector(PatchOptions{}).HasPatch(img))
}

func TestHasPatchBlankPage(t *testing.T) {
	assert.False(t, NewPatchDetector(PatchOptions{}).HasPatch(blankPage(300, 400)))
}

func TestPatchOptionsOverride(t *testing.T) {
	img := blankPage(300, 400)
	fillRect(img, image.Rect(20, 20, 40, 40), color.Black)
	assert.True(t, NewPatchDetector(PatchOptions{MinArea: 100}).HasPatch(img))
}

// --- barcode detector ---

func TestHasBarcodeCode128(t *testing.T) {
	assert.True(t, NewBarcodeDetector(nil).HasBarcode(barcodePage(t)))
}

func TestHasBarcodeSymbologies(t *testing.T) {
	tests := []struct {
		name     string
		writer   gozxing.Writer
		contents string
		format   gozxing.BarcodeFormat
		w, h     int
	}{
		{"code128", oned.NewCode128Writer(), "DIVIDER-0001", gozxing.BarcodeFormat_CODE_128, 560, 80},
		{"code39", oned.NewCode39Writer(), "DIVIDER-39", gozxing.BarcodeFormat_CODE_39, 560, 80},
		{"code93", oned.NewCode93Writer(), "DIVIDER-93", gozxing.BarcodeFormat_CODE_93, 560, 80},
		{"itf", oned.NewITFWriter(), "12345678901234", gozxing.BarcodeFormat_ITF, 560, 80},
		{"codabar", oned.NewCodaBarWriter(), "A40156B", gozxing.BarcodeFormat_CODABAR, 560, 80},
		{"ean13", oned.NewEAN13Writer(), "5901234123457", gozxing.BarcodeFormat_EAN_13, 560, 80},
		{"ean8", oned.NewEAN8Writer(), "96385074", gozxing.BarcodeFormat_EAN_8, 560, 80},
		{"upca", oned.NewUPCAWriter(), "036000291452", gozxing.BarcodeFormat_UPC_A, 560, 80},
		{"upce", oned.NewUPCEWriter(), "12345670", gozxing.BarcodeFormat_UPC_E, 560, 80},
		{"qr", qrcode.NewQRCodeWriter(), "DIVIDER-QR", gozxing.BarcodeFormat_QR_CODE, 200, 200},
	}
	det := NewBarcodeDetector(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page := symbolPage(t, tc.writer, tc.contents, tc.format, tc.w, tc.h)
			assert.True(t, det.HasBarcode(page))
		})
	}
}

func TestZXingStopsAtFirstDecode(t *testing.T) {
	bin := binarize(toGray(barcodePage(t)), 128)
	n, err := ZXing{}.Decode(bin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHasBarcodeBlankPage(t *testing.T) {
	assert.False(t, NewBarcodeDetector(nil).HasBarcode(blankPage(300, 400)))
}

func TestHasBarcodeDecodeErrorIsNoBarcode(t *testing.T) {
	dec := &stubDecoder{n: 3, err: errors.New("library failure")}
	assert.False(t, NewBarcodeDetector(dec).HasBarcode(blankPage(50, 50)))
	assert.Equal(t, 1, dec.calls)
}

func TestHasBarcodeReceivesBinaryImage(t *testing.T) {
	var got image.Image
	dec := decoderFunc(func(img image.Image) (int, error) {
		got = img
		return 0, nil
	})
	img := blankPage(40, 40)
	fillRect(img, image.Rect(0, 0, 20, 40), color.Gray{Y: 90})

	NewBarcodeDetector(dec).HasBarcode(img)
	gray, ok := got.(*image.Gray)
	require.True(t, ok)
	for _, v := range gray.Pix {
		assert.True(t, v == 0 || v == 255)
	}
}

type decoderFunc func(image.Image) (int, error)

func (f decoderFunc) Decode(img image.Image) (int, error) { return f(img) }

// --- classifier ---

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModePatch, ParseMode("patch"))
	assert.Equal(t, ModePatch, ParseMode("PATCH"))
	assert.Equal(t, ModeBarcode, ParseMode("Barcode"))
	assert.Equal(t, ModeEither, ParseMode(""))
	assert.Equal(t, ModeEither, ParseMode("qr"))
	assert.Equal(t, "either", ModeEither.String())
}

func TestClassifierModeIsolation(t *testing.T) {
	c := NewClassifier(nil, nil)
	page := barcodePage(t)

	assert.False(t, c.IsDivider(page, ModePatch))
	assert.True(t, c.IsDivider(page, ModeBarcode))
	assert.True(t, c.IsDivider(page, ModeEither))
}

func TestClassifierPatchModes(t *testing.T) {
	dec := &stubDecoder{}
	c := NewClassifier(nil, NewBarcodeDetector(dec))

	assert.True(t, c.IsDivider(patchPage(), ModePatch))
	assert.False(t, c.IsDivider(patchPage(), ModeBarcode))
	assert.True(t, c.IsDivider(patchPage(), ModeEither))
}

func TestClassifierEitherShortCircuits(t *testing.T) {
	dec := &stubDecoder{n: 1}
	c := NewClassifier(nil, NewBarcodeDetector(dec))

	require.True(t, c.IsDivider(patchPage(), ModeEither))
	assert.Equal(t, 0, dec.calls)

	require.True(t, c.IsDivider(blankPage(100, 100), ModeEither))
	assert.Equal(t, 1, dec.calls)
}

func TestClassifierContentPage(t *testing.T) {
	c := NewClassifier(nil, NewBarcodeDetector(&stubDecoder{}))
	assert.False(t, c.IsDivider(blankPage(300, 400), ModeEither))
}

func toGray(img image.Image) *image.Gray {
	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Bounds(), img, img.Bounds().Min, draw.Src)
	return g
}
