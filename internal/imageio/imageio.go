// Package imageio decodes input images and normalizes them to the canonical
// RGB buffer consumed by the detector, the aligner and the models.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/andresmejia3/facecmp/internal/types"
)

// Load reads and decodes an image file into an opaque RGBA buffer.
// Supports: JPEG, PNG, GIF, BMP, TIFF, WebP
func Load(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrImageLoad, err)
	}
	return Decode(data)
}

// Decode decodes image bytes into an opaque RGBA buffer whose bounds start at (0,0).
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrImageLoad, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", types.ErrImageLoad)
	}
	return ToRGB(img), nil
}

// ToRGB copies img into a new RGBA buffer anchored at the origin. Transparent
// pixels are composited over black so every pixel is fully opaque.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// EncodePNG serializes an image for transport to out-of-process models.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
