package detect

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog/log"

	"github.com/local/patchsplit/internal/raster"
)

// Decoder counts the barcodes it can decode from a binarized page; a
// positive count is all callers rely on. Errors are decode failures, not
// absence.
type Decoder interface {
	Decode(img image.Image) (int, error)
}

// BarcodeDetector reports whether a page carries any decodable barcode.
type BarcodeDetector struct {
	dec Decoder
}

// NewBarcodeDetector creates a detector. A nil decoder selects ZXing.
func NewBarcodeDetector(dec Decoder) *BarcodeDetector {
	if dec == nil {
		dec = ZXing{}
	}
	return &BarcodeDetector{dec: dec}
}

// HasBarcode binarizes with Otsu's global threshold, since scanned barcodes
// vary in exposure, then decodes. Decode failures count as no barcode.
func (d *BarcodeDetector) HasBarcode(img image.Image) bool {
	gray := raster.Gray(img)
	bin := binarize(gray, otsuThreshold(gray))

	n, err := d.dec.Decode(bin)
	if err != nil {
		log.Debug().Err(err).Msg("barcode decode failed; treating as none")
		return false
	}
	if n > 0 {
		log.Debug().Int("count", n).Msg("barcode detected")
	}
	return n > 0
}

// ZXing decodes common 1D and 2D symbologies with gozxing.
type ZXing struct{}

func zxingReaders() []gozxing.Reader {
	return []gozxing.Reader{
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewCode93Reader(),
		oned.NewITFReader(),
		oned.NewCodaBarReader(),
		oned.NewEAN13Reader(),
		oned.NewEAN8Reader(),
		oned.NewUPCAReader(),
		oned.NewUPCEReader(),
		qrcode.NewQRCodeReader(),
		datamatrix.NewDataMatrixReader(),
	}
}

// Decode stops at the first reader that decodes a symbol and returns 1, or
// 0 when none does. Readers report "not found" through errors, which are
// ignored; a panic inside the library is returned as an error.
func (ZXing) Decode(img image.Image) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("zxing: %v", r)
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return 0, fmt.Errorf("zxing bitmap: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	for _, r := range zxingReaders() {
		if _, derr := r.Decode(bmp, hints); derr == nil {
			return 1, nil
		}
	}
	return 0, nil
}
