package transfer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-snapocr/internal/log"
	"github.com/teslashibe/go-snapocr/pkg/normalize"
)

var testImage = normalize.EncodedImage{
	Data:     []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10},
	MIMEType: "image/jpeg",
	Filename: "capture-1.jpg",
	Width:    1,
	Height:   1,
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithBaseURL(server.URL), WithLogger(log.Discard())}, opts...)
	return NewClient(opts...)
}

func TestSendMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ocr" {
			t.Errorf("Expected /api/ocr, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("missing image field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != string(testImage.Data) {
			t.Errorf("image bytes differ: %v", data)
		}
		if header.Filename != "capture-1.jpg" {
			t.Errorf("filename = %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part content type = %q", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"HELLO","raw":{"engine":"stub"}}`)
	})

	res, err := client.Send(context.Background(), testImage)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.Text != "HELLO" {
		t.Errorf("Text = %q, want HELLO", res.Text)
	}
	if string(res.Raw) != `{"engine":"stub"}` {
		t.Errorf("Raw = %s", res.Raw)
	}
}

func TestSendErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"body text", 500, "server overloaded", "server overloaded"},
		{"empty body", 502, "", "HTTP 502"},
		{"bad request", 400, `{"error":"Invalid payload"}`, `{"error":"Invalid payload"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			_, err := client.Send(context.Background(), testImage)
			var uerr *UploadError
			if !errors.As(err, &uerr) {
				t.Fatalf("expected *UploadError, got %T: %v", err, err)
			}
			if uerr.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", uerr.StatusCode, tc.status)
			}
			if err.Error() != tc.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestSendMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", "<html>oops</html>", ""},
		{"empty", "", ""},
		{"missing text", `{"raw":1}`, ""},
		{"number text", `{"text":42}`, "42"},
		{"float text", `{"text":3.5}`, "3.5"},
		{"zero text", `{"text":0}`, ""},
		{"true text", `{"text":true}`, "true"},
		{"false text", `{"text":false}`, ""},
		{"null text", `{"text":null}`, ""},
		{"object text", `{"text":{"a":1}}`, ""},
		{"array", `["HELLO"]`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tc.body)
			})
			res, err := client.Send(context.Background(), testImage)
			if err != nil {
				t.Fatalf("malformed body must not fail: %v", err)
			}
			if res.Text != tc.want {
				t.Errorf("Text = %q, want %q", res.Text, tc.want)
			}
		})
	}
}

func TestSendNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithLogger(log.Discard()))
	_, err := client.Send(context.Background(), testImage)
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))

	_, err := client.Send(context.Background(), testImage)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSendSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(503)
	})
	client.Send(context.Background(), testImage)
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestSendEmptyImage(t *testing.T) {
	client := NewClient(WithLogger(log.Discard()))
	if _, err := client.Send(context.Background(), normalize.EncodedImage{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("got %v, want ErrEmptyImage", err)
	}
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/heartbeat" {
			t.Errorf("Expected /heartbeat, got %s", r.URL.Path)
		}
		io.WriteString(w, `{"status":"ok","time":"2026-10-17T12:00:00.000Z"}`)
	})

	hb, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if hb.Status != "ok" {
		t.Errorf("Status = %q", hb.Status)
	}
	if hb.Time.Year() != 2026 {
		t.Errorf("Time = %v", hb.Time)
	}
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock("hi")
	res, err := m.Send(context.Background(), testImage)
	if err != nil || res.Text != "hi" {
		t.Fatalf("got %v, %v", res, err)
	}
	if m.CallCount() != 1 || m.Calls()[0].Image.Filename != "capture-1.jpg" {
		t.Errorf("calls = %+v", m.Calls())
	}
	m.Reset()
	if m.CallCount() != 0 {
		t.Error("Reset did not clear calls")
	}

	boom := errors.New("boom")
	if _, err := WithError(boom).Send(context.Background(), testImage); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestCustomEndpoint(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v2/recognize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL+"/"),
		WithPath("/v2/recognize"),
		WithField("file"),
		WithHTTPClient(server.Client()),
		WithLogger(log.Discard()),
	)
	if client.URL() != server.URL+"/v2/recognize" {
		t.Errorf("URL() = %s", client.URL())
	}
	res, err := client.Send(context.Background(), testImage)
	if err != nil || res.Text != "ok" {
		t.Fatalf("got %+v, %v", res, err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d", hits.Load())
	}
}

func TestUploadErrorKinds(t *testing.T) {
	tests := []struct {
		status      int
		body        string
		wantMessage string
		server      bool
		tooLarge    bool
	}{
		{413, "", "HTTP 413", false, true},
		{502, "bad gateway", "bad gateway", true, false},
		{400, `{"error":"Invalid payload"}`, `{"error":"Invalid payload"}`, false, false},
	}
	for _, tc := range tests {
		e := newUploadError(tc.status, tc.body)
		if e.Error() != tc.wantMessage || e.IsServerError() != tc.server || e.IsTooLarge() != tc.tooLarge {
			t.Errorf("newUploadError(%d, %q) = %+v", tc.status, tc.body, e)
		}
	}
}
