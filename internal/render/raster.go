package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/couchcryptid/nwp-overlay/internal/domain"
)

// Rasterize maps a resampled field through the parameter's color ramp into
// an image with per-pixel alpha. Missing pixels are fully transparent so
// the overlay composites cleanly on a basemap.
func Rasterize(f *Field, p domain.Parameter) *image.NRGBA {
	ramp := RampFor(p)
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for row := 0; row < f.Height; row++ {
		for col := 0; col < f.Width; col++ {
			v := f.At(row, col)
			if math.IsNaN(v) {
				continue // NRGBA zero value is transparent
			}
			img.SetNRGBA(col, row, ramp.At(v))
		}
	}
	return img
}

// WriteImage encodes img as PNG and publishes it at path atomically
// (temp file + rename), so the output directory never exposes a
// half-written image.
func WriteImage(img image.Image, path string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish image: %w", err)
	}
	return nil
}
