// Package recognize turns an uploaded image into text on the server side.
//
// Backends:
//   - placeholder: echoes the payload size, no recognition
//   - vision: Google Cloud Vision TEXT_DETECTION
//   - gemini: transcription by a Gemini multimodal model
//   - tesseract: local libtesseract, only in builds tagged "tesseract"
package recognize

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Backend names accepted by New.
const (
	KindPlaceholder = "placeholder"
	KindVision      = "vision"
	KindGemini      = "gemini"
	KindTesseract   = "tesseract"
)

var (
	// ErrInvalidRequest is returned for a request without image data.
	ErrInvalidRequest = errors.New("recognize: invalid payload")

	// ErrUnavailable is returned when a backend cannot be constructed.
	ErrUnavailable = errors.New("recognize: backend unavailable")
)

// Request is one recognition job.
type Request struct {
	// ImageBase64 is the standard base64 encoding of the image bytes.
	ImageBase64 string
	MIMEType    string
}

// NewRequest encodes raw image bytes.
func NewRequest(data []byte, mimeType string) Request {
	return Request{ImageBase64: base64.StdEncoding.EncodeToString(data), MIMEType: mimeType}
}

// Bytes decodes the image payload. A data URL prefix is tolerated.
func (r Request) Bytes() ([]byte, error) {
	payload := r.ImageBase64
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, ErrInvalidRequest
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return data, nil
}

// Result is the recognition outcome returned to the client.
type Result struct {
	Text string `json:"text"`
	Raw  any    `json:"raw,omitempty"`
}

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, req Request) (*Result, error)
}

// Options configures New.
type Options struct {
	// GoogleAPIKey authenticates the vision backend. When empty,
	// application default credentials are used.
	GoogleAPIKey string

	// Languages are language hints, e.g. "eng" for tesseract or "en" for vision.
	Languages []string

	// HTTPClient overrides the vision and gemini transport.
	HTTPClient *http.Client

	// Endpoint overrides the vision or gemini API base URL.
	Endpoint string

	// Model selects the gemini model. Defaults to GeminiModel.
	Model string

	Logger *slog.Logger
}

// New builds the backend named kind.
func New(ctx context.Context, kind string, opts Options) (Recognizer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindPlaceholder:
		return Placeholder{}, nil
	case KindVision:
		return NewVision(ctx, opts)
	case KindGemini:
		return NewGemini(opts)
	case KindTesseract:
		return NewTesseract(opts.Languages)
	default:
		return nil, fmt.Errorf("%w: unknown recognizer %q", ErrUnavailable, kind)
	}
}

// Placeholder reports the payload size instead of recognizing anything.
type Placeholder struct{}

// Recognize implements Recognizer.
func (Placeholder) Recognize(_ context.Context, req Request) (*Result, error) {
	return &Result{Text: fmt.Sprintf("[placeholder] bytes=%d", len(req.ImageBase64))}, nil
}

var _ Recognizer = Placeholder{}
