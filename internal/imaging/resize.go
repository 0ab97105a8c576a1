// Package imaging normalizes uploaded images to the ingress bounds
// the Pipeline Orchestrator assumes (spec §4.6), reusing
// evalgo-org-eve/media's nfnt/resize-based rescale approach since the
// teacher repo carries no image-processing dependency of its own.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	extimaging "github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Bounds describes the ingress limits a Material's source image must
// satisfy before it enters the pipeline (spec §4.6).
type Bounds struct {
	MaxDimension int
	MaxBytes     int64
}

// Normalize decodes raw, downsizes it to fit within b.MaxDimension on
// its longest side using Lanczos3 (matching ImageRescale's quality
// choice), and re-encodes as JPEG, lowering quality until the result
// fits within b.MaxBytes. It returns the original bytes unchanged if
// they already satisfy both bounds.
func Normalize(raw []byte, b Bounds) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := width
	if height > longest {
		longest = height
	}

	if longest > b.MaxDimension {
		if width >= height {
			img = resize.Resize(uint(b.MaxDimension), 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, uint(b.MaxDimension), img, resize.Lanczos3)
		}
	} else if int64(len(raw)) <= b.MaxBytes {
		return raw, format, nil
	}

	return encodeWithinBudget(img, b.MaxBytes)
}

// encodeWithinBudget binary-searches JPEG quality 85..10 (spec §4.4.6)
// until the encoded size fits within maxBytes, returning the
// highest-quality encoding found that fits (or the lowest-quality
// attempt if none fit, rather than failing the upload).
func encodeWithinBudget(img image.Image, maxBytes int64) ([]byte, string, error) {
	var best []byte
	low, high := 10, 85
	for low <= high {
		quality := (low + high) / 2
		buf := &bytes.Buffer{}
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg at quality %d: %w", quality, err)
		}
		if int64(buf.Len()) <= maxBytes {
			best = buf.Bytes()
			low = quality + 1
		} else {
			high = quality - 1
		}
	}
	if best == nil {
		// Even the lowest acceptable quality didn't fit; return it
		// anyway rather than reject an otherwise-valid upload.
		buf := &bytes.Buffer{}
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 10}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg at floor quality: %w", err)
		}
		best = buf.Bytes()
	}
	return best, "jpeg", nil
}

// RotateClockwise90 decodes raw, rotates it 90° clockwise (swapping
// its width and height), and re-encodes as JPEG, reusing
// disintegration/imaging's rotate transform rather than hand-rolling
// pixel math (spec §4.4's rotate action, testable scenario 6).
func RotateClockwise90(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	rotated := extimaging.Rotate270(img)

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, rotated, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode rotated jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Dimensions returns the width and height of raw without fully
// decoding pixel data where the format's Config reader allows it.
func Dimensions(raw []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
