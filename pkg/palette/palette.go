package palette

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
)

// ErrDecode reports an upload that could not be decoded into an RGB image.
// A run aborts before any stage when it sees this.
var ErrDecode = errors.New("image decode failed")

const (
	// sampleSize is the fixed resolution drawings are downscaled to before
	// color counting. It bounds the cost of the frequency table.
	sampleSize = 50

	// quantStep buckets each channel into 8 levels so near-identical crayon
	// strokes count as the same color.
	quantStep = 32
)

// RGB is a representative color with 0-255 channels.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Decode reads an uploaded drawing. PNG is tried first (the common case),
// then the registered generic decoders, then WebP.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}

	img, _, err2 := image.Decode(bytes.NewReader(data))
	if err2 == nil {
		return img, nil
	}

	img, err3 := webp.Decode(bytes.NewReader(data))
	if err3 == nil {
		return img, nil
	}

	return nil, fmt.Errorf("%w (png: %v, generic: %v, webp: %v)", ErrDecode, err, err2, err3)
}

// Dominant returns the most frequent quantized color of the drawing.
//
// The image is downscaled to sampleSize x sampleSize with nearest-neighbor
// sampling, each pixel is quantized to quantStep buckets per channel, and the
// mode wins. Mode was chosen over the per-channel mean: the emotion rule
// table in Classify is tuned against it, and a mean washes a red sun on a
// white page down to pink. Scanning is in scanline order with a strict
// greater-than update, so the result is deterministic for a fixed image.
func Dominant(img image.Image) RGB {
	small := image.NewRGBA(image.Rect(0, 0, sampleSize, sampleSize))
	draw.NearestNeighbor.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	counts := make(map[RGB]int, sampleSize*sampleSize)
	var best RGB
	bestCount := 0
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			i := small.PixOffset(x, y)
			c := RGB{
				R: quantize(small.Pix[i]),
				G: quantize(small.Pix[i+1]),
				B: quantize(small.Pix[i+2]),
			}
			counts[c]++
			if counts[c] > bestCount {
				best, bestCount = c, counts[c]
			}
		}
	}
	return best
}

// quantize snaps a channel to the midpoint of its bucket.
func quantize(v uint8) uint8 {
	bucket := int(v) / quantStep
	mid := bucket*quantStep + quantStep/2
	if mid > 255 {
		mid = 255
	}
	return uint8(mid)
}
