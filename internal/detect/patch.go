package detect

import (
	"image"

	"github.com/rs/zerolog/log"

	"github.com/local/patchsplit/internal/raster"
)

const (
	// PatchThreshold separates printed ink from paper. Patch marks are solid
	// high-contrast blocks, so a fixed cut is reliable for them.
	PatchThreshold = 50

	// PatchMinArea is the bounding-box area a mark must exceed, in pixels at
	// raster.DPI.
	PatchMinArea = 500

	PatchMinAspect = 0.5
	PatchMaxAspect = 2.0
)

// PatchOptions tunes the patch detector. Zero fields fall back to defaults.
type PatchOptions struct {
	Threshold uint8
	MinArea   int
	MinAspect float64
	MaxAspect float64
}

// PatchDetector finds a solid roughly-square printed block on a page.
type PatchDetector struct {
	opts PatchOptions
}

// NewPatchDetector creates a patch detector.
func NewPatchDetector(opts PatchOptions) *PatchDetector {
	if opts.Threshold == 0 {
		opts.Threshold = PatchThreshold
	}
	if opts.MinArea <= 0 {
		opts.MinArea = PatchMinArea
	}
	if opts.MinAspect <= 0 {
		opts.MinAspect = PatchMinAspect
	}
	if opts.MaxAspect <= 0 {
		opts.MaxAspect = PatchMaxAspect
	}
	return &PatchDetector{opts: opts}
}

// HasPatch reports whether any external dark region qualifies as a patch.
func (d *PatchDetector) HasPatch(img image.Image) bool {
	gray := raster.Gray(img)
	found := false
	walkExternal(inverseBinary(gray, d.opts.Threshold), func(c Component) bool {
		if !d.qualifies(c) {
			return true
		}
		log.Debug().
			Int("x", c.MinX).
			Int("y", c.MinY).
			Int("w", c.Width).
			Int("h", c.Height).
			Msg("patch detected")
		found = true
		return false
	})
	return found
}

func (d *PatchDetector) qualifies(c Component) bool {
	aspect := float64(c.Width) / float64(c.Height)
	return aspect >= d.opts.MinAspect && aspect <= d.opts.MaxAspect && c.Width*c.Height > d.opts.MinArea
}
