package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/teslashibe/go-snapocr/internal/log"
)

func TestPlaceholder(t *testing.T) {
	res, err := Placeholder{}.Recognize(context.Background(), Request{ImageBase64: "QUJDRA==", MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.Text != "[placeholder] bytes=8" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Raw != nil {
		t.Errorf("Raw = %v, want nil", res.Raw)
	}
}

func TestRequestBytes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"plain", "aGk=", "hi", false},
		{"data url", "data:image/png;base64,aGk=", "hi", false},
		{"empty", "", "", true},
		{"garbage", "%%%", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Request{ImageBase64: tc.payload}.Bytes()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("err = %v, want ErrInvalidRequest", err)
				}
				return
			}
			if err != nil || string(got) != tc.want {
				t.Errorf("got %q, %v", got, err)
			}
		})
	}

	if r := NewRequest([]byte("hi"), "image/png"); r.ImageBase64 != "aGk=" || r.MIMEType != "image/png" {
		t.Errorf("NewRequest = %+v", r)
	}
}

func TestNewKinds(t *testing.T) {
	for _, kind := range []string{"", "placeholder", " Placeholder "} {
		r, err := New(context.Background(), kind, Options{})
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		if _, ok := r.(Placeholder); !ok {
			t.Errorf("New(%q) = %T", kind, r)
		}
	}
	if _, err := New(context.Background(), "abbyy", Options{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unknown kind err = %v", err)
	}
}

func TestVision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images:annotate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Requests []struct {
				Image    struct{ Content string }
				Features []struct{ Type string }
			}
		}
		if err := json.Unmarshal(body, &req); err != nil || len(req.Requests) != 1 {
			t.Errorf("bad request body %s: %v", body, err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Requests[0].Image.Content != "aGk=" {
			t.Errorf("content = %q", req.Requests[0].Image.Content)
		}
		if len(req.Requests[0].Features) != 1 || req.Requests[0].Features[0].Type != "TEXT_DETECTION" {
			t.Errorf("features = %+v", req.Requests[0].Features)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"responses":[{"fullTextAnnotation":{"text":"HELLO\n"},"textAnnotations":[{"description":"HELLO"}]}]}`)
	}))
	defer server.Close()

	v, err := NewVision(context.Background(), Options{
		HTTPClient: server.Client(),
		Endpoint:   server.URL + "/",
		Languages:  []string{"en"},
		Logger:     log.Discard(),
	})
	if err != nil {
		t.Fatalf("NewVision: %v", err)
	}

	res, err := v.Recognize(context.Background(), Request{ImageBase64: "aGk=", MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.Text != "HELLO\n" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Raw == nil {
		t.Error("Raw not set")
	}

	if _, err := v.Recognize(context.Background(), Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty request err = %v", err)
	}
}

func TestVisionResponseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`)
	}))
	defer server.Close()

	v, err := NewVision(context.Background(), Options{HTTPClient: server.Client(), Endpoint: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewVision: %v", err)
	}
	_, err = v.Recognize(context.Background(), Request{ImageBase64: "aGk="})
	if err == nil || err.Error() != "vision: Bad image data." {
		t.Errorf("err = %v", err)
	}
}

func TestMock(t *testing.T) {
	m := NewMock("x")
	res, err := m.Recognize(context.Background(), Request{ImageBase64: "aGk="})
	if err != nil || res.Text != "x" {
		t.Fatalf("got %+v, %v", res, err)
	}
	if len(m.Requests()) != 1 {
		t.Errorf("requests = %d", len(m.Requests()))
	}
}

func TestGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "k" {
			t.Errorf("api key header = %q", got)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want none", r.URL.RawQuery)
		}
		var req struct {
			Contents []struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MIMEType string `json:"mime_type"`
						Data     string `json:"data"`
					} `json:"inline_data"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("bad request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		img := req.Contents[0].Parts[1].InlineData
		if img == nil || img.Data != "aGk=" || img.MIMEType != "image/png" {
			t.Errorf("inline data = %+v", img)
		}
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"HELLO\n"}]},"finishReason":"STOP"}]}`)
	}))
	defer server.Close()

	g, err := NewGemini(Options{
		GoogleAPIKey: "k",
		Endpoint:     server.URL,
		Model:        "gemini-test",
		HTTPClient:   server.Client(),
		Logger:       log.Discard(),
	})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	res, err := g.Recognize(context.Background(), Request{ImageBase64: "aGk=", MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.Text != "HELLO" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestGeminiErrors(t *testing.T) {
	if _, err := NewGemini(Options{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing key err = %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"API key not valid"}}`)
	}))
	defer server.Close()

	g, _ := NewGemini(Options{GoogleAPIKey: "bad", Endpoint: server.URL, HTTPClient: server.Client()})
	_, err := g.Recognize(context.Background(), Request{ImageBase64: "aGk="})
	if err == nil || err.Error() != "gemini: API key not valid" {
		t.Errorf("err = %v", err)
	}
}

func TestGeminiTransportErrorHidesKey(t *testing.T) {
	// Nothing listens on a closed server's address.
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	g, err := NewGemini(Options{GoogleAPIKey: "SECRET-KEY-123", Endpoint: endpoint, Logger: log.Discard()})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	_, err = g.Recognize(context.Background(), Request{ImageBase64: "aGk="})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Errorf("error text carries the API key: %v", err)
	}
}

func TestVisionTransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/"
	server.Close()

	v, err := NewVision(context.Background(), Options{GoogleAPIKey: "SECRET-KEY-456", Endpoint: endpoint})
	if err != nil {
		t.Fatalf("NewVision: %v", err)
	}
	_, err = v.Recognize(context.Background(), Request{ImageBase64: "aGk="})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-456") {
		t.Errorf("error text carries the API key: %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	cause := errors.New("connection refused")
	err := redactURL(fmt.Errorf("wrapped: %w", &url.Error{
		Op:  "Post",
		URL: "https://vision.googleapis.com/v1/images:annotate?alt=json&key=SECRET",
		Err: cause,
	}))
	if strings.Contains(err.Error(), "SECRET") {
		t.Errorf("key survived: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause lost: %v", err)
	}

	plain := errors.New("plain")
	if redactURL(plain) != plain {
		t.Error("non-URL error changed")
	}
}
