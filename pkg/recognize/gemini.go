package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-snapocr/internal/httpc"
)

// Gemini defaults.
const (
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	GeminiModel   = "gemini-2.0-flash"

	geminiPrompt = "Transcribe all text visible in this image exactly as written, " +
		"keeping line breaks. Reply with the text only. If there is no text, reply with nothing."
)

// Gemini transcribes text with a Gemini multimodal model.
type Gemini struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewGemini creates a Gemini backend. It requires opts.GoogleAPIKey.
func NewGemini(opts Options) (*Gemini, error) {
	if opts.GoogleAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini needs GOOGLE_API_KEY", ErrUnavailable)
	}
	baseURL := GeminiBaseURL
	if opts.Endpoint != "" {
		baseURL = strings.TrimSuffix(opts.Endpoint, "/")
	}
	model := opts.Model
	if model == "" {
		model = GeminiModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = httpc.NewClient(httpc.DefaultTimeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		apiKey:  opts.GoogleAPIKey,
		baseURL: baseURL,
		model:   model,
		http:    client,
		logger:  logger.With("component", "recognize.gemini"),
	}, nil
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Recognize implements Recognizer.
func (g *Gemini) Recognize(ctx context.Context, req Request) (*Result, error) {
	if req.ImageBase64 == "" {
		return nil, ErrInvalidRequest
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	var body geminiRequest
	body.Contents = make([]struct {
		Parts []geminiPart `json:"parts"`
	}, 1)
	body.Contents[0].Parts = []geminiPart{
		{Text: geminiPrompt},
		{InlineData: &geminiInlineData{MIMEType: mimeType, Data: req.ImageBase64}},
	}
	body.GenerationConfig.Temperature = 0
	body.GenerationConfig.MaxOutputTokens = 2048

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	// The key travels in a header so transport errors, which quote the
	// URL, never carry it back to HTTP callers.
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini read: %w", err)
	}

	var out geminiResponse
	jsonErr := json.Unmarshal(raw, &out)
	if out.Error.Message != "" {
		return nil, fmt.Errorf("gemini: %s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: HTTP %d", resp.StatusCode)
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("gemini decode: %w", jsonErr)
	}

	var sb strings.Builder
	finish := ""
	if len(out.Candidates) > 0 {
		finish = out.Candidates[0].FinishReason
		for _, p := range out.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())

	g.logger.Debug("transcribed",
		"model", g.model,
		"chars", len(text),
		"finish", finish,
		"latency_ms", time.Since(start).Milliseconds())
	return &Result{Text: text, Raw: map[string]string{"model": g.model, "finishReason": finish}}, nil
}

var _ Recognizer = (*Gemini)(nil)
