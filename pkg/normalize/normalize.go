// Package normalize bounds a captured bitmap to a pixel budget and encodes it
// as JPEG for upload.
//
// The budget is a hard cap that limits upload bandwidth. Images already
// under it keep their native size; nothing is ever upscaled.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
)

// Defaults for the upload encoding.
const (
	MaxPixels = 2_000_000
	Quality   = 92 // 0.92 on a 0..1 scale
	MIMEType  = "image/jpeg"
)

// ErrEncodeFailure is returned when encoding produced no data. Callers treat
// it as a terminal no-op: nothing is uploaded and no error is shown.
var ErrEncodeFailure = errors.New("normalize: encoder produced no data")

// EncodedImage is an immutable upload payload.
type EncodedImage struct {
	Data     []byte
	MIMEType string
	Filename string
	Width    int
	Height   int
}

// Empty reports whether the payload carries no bytes.
func (e EncodedImage) Empty() bool {
	return len(e.Data) == 0
}

// Dimensions returns the output size for a w x h input under budget pixels.
// The aspect ratio is kept within rounding error.
func Dimensions(w, h, budget int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if budget <= 0 || w*h <= budget {
		return w, h
	}

	scale := math.Sqrt(float64(budget) / float64(w*h))
	ow := int(math.Round(float64(w) * scale))
	oh := int(math.Round(float64(h) * scale))

	// A side never drops below one pixel, even at extreme aspect ratios.
	ow, oh = max(ow, 1), max(oh, 1)

	// Rounding up both sides can overshoot the cap by a few pixels.
	for ow*oh > budget {
		if ow >= oh {
			ow = min(ow-1, budget/oh)
		} else {
			oh = min(oh-1, budget/ow)
		}
	}
	return ow, oh
}

// Normalizer resizes and encodes stills.
type Normalizer struct {
	MaxPixels int
	Quality   int

	// Now stamps generated filenames. Defaults to time.Now.
	Now func() time.Time

	// encode is swapped in tests to simulate encoder failures.
	encode func(img image.Image, quality int) ([]byte, error)
}

// New returns a normalizer with the given budget and JPEG quality (1-100).
// Zero values fall back to the package defaults.
func New(maxPixels, quality int) *Normalizer {
	if maxPixels <= 0 {
		maxPixels = MaxPixels
	}
	if quality <= 0 || quality > 100 {
		quality = Quality
	}
	return &Normalizer{MaxPixels: maxPixels, Quality: quality, Now: time.Now}
}

// Normalize renders img at the bounded size and encodes it as JPEG.
func (n *Normalizer) Normalize(img image.Image) (EncodedImage, error) {
	if img == nil {
		return EncodedImage{}, ErrEncodeFailure
	}
	b := img.Bounds()
	w, h := Dimensions(b.Dx(), b.Dy(), n.MaxPixels)
	if w == 0 || h == 0 {
		return EncodedImage{}, ErrEncodeFailure
	}

	out := img
	if w != b.Dx() || h != b.Dy() {
		out = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	encode := n.encode
	if encode == nil {
		encode = encodeJPEG
	}
	data, err := encode(out, n.Quality)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	if len(data) == 0 {
		return EncodedImage{}, ErrEncodeFailure
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return EncodedImage{
		Data:     data,
		MIMEType: MIMEType,
		Filename: fmt.Sprintf("capture-%d.jpg", now().UnixMilli()),
		Width:    w,
		Height:   h,
	}, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
