package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func encodeTestJPEG(t *testing.T, width, height int, quality int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_DownsizesOversizedDimensions(t *testing.T) {
	raw := encodeTestJPEG(t, 4000, 2000, 90)
	out, format, err := Normalize(raw, Bounds{MaxDimension: 2800, MaxBytes: 10 * 1024 * 1024})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %s, want jpeg", format)
	}
	w, h, err := Dimensions(out)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w > 2800 || h > 2800 {
		t.Errorf("dimensions %dx%d exceed bound 2800", w, h)
	}
	if w != 2800 {
		t.Errorf("expected longest side resized to 2800, got width %d", w)
	}
}

func TestNormalize_PassesThroughSmallImageUnchanged(t *testing.T) {
	raw := encodeTestJPEG(t, 100, 80, 90)
	out, _, err := Normalize(raw, Bounds{MaxDimension: 2800, MaxBytes: 10 * 1024 * 1024})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Error("expected small image within both bounds to pass through unchanged")
	}
}

func TestNormalize_ShrinksToFitByteBudget(t *testing.T) {
	raw := encodeTestJPEG(t, 2000, 2000, 100)
	out, _, err := Normalize(raw, Bounds{MaxDimension: 4096, MaxBytes: int64(len(raw) / 4)})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if int64(len(out)) > int64(len(raw)/4)*2 {
		// encodeWithinBudget always attempts to respect the budget;
		// allow slack only for the floor-quality fallback path.
		t.Errorf("output size %d far exceeds budget %d", len(out), len(raw)/4)
	}
}
