package detect

import (
	"image"
	"strings"

	"github.com/local/patchsplit/internal/raster"
)

// Mode selects which marks count as a divider.
type Mode int

const (
	// ModeEither accepts a patch or a barcode. It is the default.
	ModeEither Mode = iota
	ModePatch
	ModeBarcode
)

// ParseMode maps "patch" and "barcode" (any case) to their modes; anything
// else, including "", selects ModeEither.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patch":
		return ModePatch
	case "barcode":
		return ModeBarcode
	default:
		return ModeEither
	}
}

func (m Mode) String() string {
	switch m {
	case ModePatch:
		return "patch"
	case ModeBarcode:
		return "barcode"
	default:
		return "either"
	}
}

// Classifier combines the patch and barcode detectors. It holds no
// per-page state and is safe for concurrent use.
type Classifier struct {
	patch   *PatchDetector
	barcode *BarcodeDetector
}

// NewClassifier creates a classifier from its detectors; nil selects the
// defaults.
func NewClassifier(patch *PatchDetector, barcode *BarcodeDetector) *Classifier {
	if patch == nil {
		patch = NewPatchDetector(PatchOptions{})
	}
	if barcode == nil {
		barcode = NewBarcodeDetector(nil)
	}
	return &Classifier{patch: patch, barcode: barcode}
}

// IsDivider classifies one rendered page.
func (c *Classifier) IsDivider(img image.Image, mode Mode) bool {
	gray := raster.Gray(img)
	switch mode {
	case ModePatch:
		return c.patch.HasPatch(gray)
	case ModeBarcode:
		return c.barcode.HasBarcode(gray)
	default:
		return c.patch.HasPatch(gray) || c.barcode.HasBarcode(gray)
	}
}
