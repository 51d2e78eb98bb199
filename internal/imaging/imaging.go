// Package imaging prepares background-removed garment images for storage.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/vbonduro/wardrobe/internal/domain"
)

// MaxDimension is the maximum width or height for stored images.
const MaxDimension = 1024

// OutputMIME is the type of every normalized image. PNG keeps the alpha
// channel produced by background removal.
const OutputMIME = "image/png"

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Normalize sniffs the image format, downscales anything larger than
// MaxDimension and encodes the result as PNG. A PNG already within bounds is
// returned unchanged.
func Normalize(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.Invalid("image is empty")
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, domain.Invalid(fmt.Sprintf("unsupported image format: %s", detected))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.Invalid(fmt.Sprintf("decoding image: %v", err))
	}

	bounds := img.Bounds()
	if detected == OutputMIME && bounds.Dx() <= MaxDimension && bounds.Dy() <= MaxDimension {
		return &Result{Data: data, MIME: OutputMIME, Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	out := img.Bounds()
	return &Result{Data: buf.Bytes(), MIME: OutputMIME, Width: out.Dx(), Height: out.Dy()}, nil
}

// downscale resizes img so neither dimension exceeds maxDim, preserving
// aspect ratio and transparency.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	newW = max(newW, 1)
	newH = max(newH, 1)

	dst := image.NewNRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("webp", "RIFF????WEBPVP8", webp.Decode, webp.DecodeConfig)
}
