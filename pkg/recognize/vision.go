package recognize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// Vision recognizes text with Google Cloud Vision.
type Vision struct {
	svc       *vision.Service
	languages []string
	logger    *slog.Logger
}

// NewVision creates a Cloud Vision client.
func NewVision(ctx context.Context, opts Options) (*Vision, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.HTTPClient != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	case opts.GoogleAPIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.GoogleAPIKey))
	default:
		ts, err := google.DefaultTokenSource(ctx, vision.CloudVisionScope)
		if err != nil {
			return nil, fmt.Errorf("%w: no GOOGLE_API_KEY and no default credentials: %v", ErrUnavailable, err)
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := vision.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: vision service: %v", ErrUnavailable, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Vision{
		svc:       svc,
		languages: opts.Languages,
		logger:    logger.With("component", "recognize.vision"),
	}, nil
}

// Recognize implements Recognizer.
func (v *Vision) Recognize(ctx context.Context, req Request) (*Result, error) {
	if req.ImageBase64 == "" {
		return nil, ErrInvalidRequest
	}

	air := &vision.AnnotateImageRequest{
		Image:    &vision.Image{Content: req.ImageBase64},
		Features: []*vision.Feature{{Type: "TEXT_DETECTION"}},
	}
	if len(v.languages) > 0 {
		air.ImageContext = &vision.ImageContext{LanguageHints: v.languages}
	}

	resp, err := v.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{air},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", redactURL(err))
	}
	if len(resp.Responses) == 0 {
		return &Result{}, nil
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("vision: %s", r.Error.Message)
	}

	var text string
	switch {
	case r.FullTextAnnotation != nil:
		text = r.FullTextAnnotation.Text
	case len(r.TextAnnotations) > 0:
		text = r.TextAnnotations[0].Description
	}

	v.logger.Debug("annotated", "chars", len(text), "annotations", len(r.TextAnnotations))
	return &Result{Text: text, Raw: r}, nil
}

// redactURL drops the query from a transport error's URL. API keys sent as
// a query parameter would otherwise reach HTTP callers in the error text.
func redactURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	clean := *ue
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		clean.URL = u.String()
	} else {
		clean.URL = ""
	}
	return &clean
}

var _ Recognizer = (*Vision)(nil)
