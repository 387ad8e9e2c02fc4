package detect

import (
	"image"
)

// inverseBinary marks pixels at or below threshold as foreground. Dark ink
// becomes true, background false.
func inverseBinary(img *image.Gray, threshold uint8) *mask {
	m := newMask(img.Bounds())
	for y := 0; y < m.h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+m.w]
		for x, v := range row {
			if v <= threshold {
				m.set(x, y)
			}
		}
	}
	return m
}

// otsuThreshold returns the global threshold maximizing between-class
// variance of the intensity histogram. A uniform image yields 0.
func otsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}

	total := w * h
	if total == 0 {
		return 0
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var (
		sumB   float64
		wB     int
		best   float64
		thresh int
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			thresh = t
		}
	}
	return uint8(thresh)
}

// binarize maps pixels above threshold to white and the rest to black.
func binarize(img *image.Gray, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			if v > threshold {
				dst[x] = 255
			}
		}
	}
	return out
}
