//go:build tesseract

package recognize

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with the local tesseract library.
type Tesseract struct {
	languages []string
	newClient func() *gosseract.Client
}

// TesseractWord is one recognized word with its confidence (0..1).
type TesseractWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// NewTesseract creates a tesseract backend. Each request uses a fresh client.
func NewTesseract(languages []string) (Recognizer, error) {
	return &Tesseract{languages: languages, newClient: gosseract.NewClient}, nil
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, req Request) (*Result, error) {
	data, err := req.Bytes()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := t.newClient()
	defer c.Close()

	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	return &Result{Text: strings.TrimSpace(text), Raw: words(c)}, nil
}

func words(c *gosseract.Client) []TesseractWord {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil
	}
	out := make([]TesseractWord, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, TesseractWord{
			Text:       b.Word,
			Confidence: b.Confidence / 100,
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
		})
	}
	return out
}
