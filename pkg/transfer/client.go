// Package transfer uploads encoded images to the recognition endpoint.
//
// A Send is a single attempt: no retries are made. Callers decide whether and
// when to try again.
//
// Example usage:
//
//	client := transfer.NewClient(
//	    transfer.WithBaseURL("http://localhost:8080"),
//	    transfer.WithTimeout(30*time.Second),
//	)
//	res, err := client.Send(ctx, encoded)
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/teslashibe/go-snapocr/internal/httpc"
	"github.com/teslashibe/go-snapocr/pkg/normalize"
)

// Sender uploads one encoded image and returns the recognized text.
type Sender interface {
	Send(ctx context.Context, img normalize.EncodedImage) (*Result, error)
}

// Result is the decoded recognition response.
type Result struct {
	// Text is the recognized text, "" when absent.
	Text string

	// Raw carries the server's optional "raw" field untouched.
	Raw json.RawMessage

	// LatencyMs is the round-trip time in milliseconds.
	LatencyMs int64
}

// Heartbeat is the health endpoint response.
type Heartbeat struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// Client is the HTTP transfer client.
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a transfer client.
func NewClient(opts ...Option) *Client {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	hc := cfg.HTTPClient
	if hc == nil {
		// The timeout is applied per request through the context so that
		// cancellation and timeouts surface the same way.
		hc = httpc.NewClient(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    hc,
		logger:  logger.With("component", "transfer.client"),
	}
}

// URL returns the full recognition endpoint URL.
func (c *Client) URL() string {
	return c.baseURL + c.config.Path
}

// Send posts img as multipart/form-data and decodes the response.
//
// Non-2xx responses fail with *UploadError. Transport failures fail with
// *NetworkError. A 2xx body that is not JSON yields an empty Result.
func (c *Client) Send(ctx context.Context, img normalize.EncodedImage) (*Result, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	start := time.Now()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, contentType, err := c.buildBody(img)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("uploading", "bytes", len(img.Data), "filename", img.Filename, "url", c.URL())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// An unreadable body counts as empty.
		data, _ := io.ReadAll(resp.Body)
		uerr := newUploadError(resp.StatusCode, string(data))
		c.logger.Warn("upload rejected", "status", resp.StatusCode, "message", uerr.Message)
		return nil, uerr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read response", Err: err}
	}

	res := parseResult(data)
	res.LatencyMs = time.Since(start).Milliseconds()

	c.logger.Info("upload complete",
		"status", resp.StatusCode,
		"chars", len(res.Text),
		"latency_ms", res.LatencyMs)
	return res, nil
}

// Health checks the server heartbeat.
func (c *Client) Health(ctx context.Context) (*Heartbeat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "heartbeat", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, newUploadError(resp.StatusCode, string(data))
	}

	var hb Heartbeat
	if err := json.NewDecoder(resp.Body).Decode(&hb); err != nil {
		return nil, fmt.Errorf("decode heartbeat: %w", err)
	}
	return &hb, nil
}

func (c *Client) buildBody(img normalize.EncodedImage) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = normalize.MIMEType
	}
	filename := img.Filename
	if filename == "" {
		filename = "capture.jpg"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.config.Field, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// parseResult never fails: malformed JSON yields an empty Result. A scalar
// text is shown as written, e.g. 42 or true; zero, false, null and
// structured values show as "".
func parseResult(data []byte) *Result {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &Result{}
	}

	res := &Result{Raw: fields["raw"]}
	if rawText, ok := fields["text"]; ok {
		res.Text = scalarText(rawText)
	}
	return res
}

func scalarText(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strings.TrimSpace(string(raw))
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}

var _ Sender = (*Client)(nil)
