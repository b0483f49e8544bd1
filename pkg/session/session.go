// Package session drives one capture-and-transfer session: it acquires a
// still from the live camera or a picker, normalizes it, uploads it, and
// exposes the resulting state to observers.
//
// Every action that resets the display starts a new attempt. A pending
// upload whose attempt is no longer current is discarded when it resolves,
// so a slow request can never overwrite a newer outcome.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-snapocr/pkg/camera"
	"github.com/teslashibe/go-snapocr/pkg/capture"
	"github.com/teslashibe/go-snapocr/pkg/normalize"
	"github.com/teslashibe/go-snapocr/pkg/preview"
	"github.com/teslashibe/go-snapocr/pkg/transfer"
)

var (
	// ErrClosed is returned by actions on a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrBusy is returned when a frame is already being captured.
	ErrBusy = errors.New("session: capture in progress")

	// ErrNotStreaming is returned by Capture without an open stream.
	ErrNotStreaming = capture.ErrNotStreaming
)

// Option configures a Session.
type Option func(*Session)

// WithNormalizer sets the resize/encode stage.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Session) { s.normalizer = n }
}

// WithPreviewStore shares a preview store, e.g. with an HTTP server.
func WithPreviewStore(p *preview.Store) Option {
	return func(s *Session) { s.previews = p }
}

// WithConstraints sets the source of camera constraints, read on every
// StartCamera.
func WithConstraints(fn func() camera.Constraints) Option {
	return func(s *Session) { s.constraints = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

type attempt struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Session is safe for concurrent use.
type Session struct {
	live        *capture.Live
	sender      transfer.Sender
	normalizer  *normalize.Normalizer
	previews    *preview.Store
	constraints func() camera.Constraints
	logger      *slog.Logger

	// streamMu serializes opening and releasing the live stream.
	streamMu sync.Mutex

	mu      sync.Mutex
	state   Snapshot
	current *attempt
	closed  bool

	// notifyMu keeps observer callbacks in commit order.
	notifyMu sync.Mutex
	subs     map[int]func(Snapshot)
	nextSub  int
}

// New creates an idle session uploading through sender.
func New(cam capture.Camera, sender transfer.Sender, opts ...Option) *Session {
	s := &Session{
		sender:      sender,
		constraints: camera.DefaultConstraints,
		subs:        make(map[int]func(Snapshot)),
		state:       Snapshot{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "session")
	if s.normalizer == nil {
		s.normalizer = normalize.New(normalize.MaxPixels, normalize.Quality)
	}
	if s.previews == nil {
		s.previews = preview.NewStore()
	}
	s.live = capture.NewLive(cam, s.logger)
	return s
}

// Previews returns the store holding this session's preview images.
func (s *Session) Previews() *preview.Store {
	return s.previews
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive every state change. The returned func
// removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.notifyMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.subs, id)
		s.notifyMu.Unlock()
	}
}

// StartCamera opens the live stream, releasing any stream already held.
// Failures are reported through the state as "Camera error: ...".
func (s *Session) StartCamera(ctx context.Context) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	a, err := s.begin(ctx, nil, func(st *Snapshot) {
		s.previews.Revoke(st.PreviewURI)
		st.PreviewURI = ""
		st.Status = StatusIdle
		st.Streaming = false
	})
	if err != nil {
		return err
	}
	defer a.cancel()

	openErr := s.live.Open(a.ctx, s.constraints())
	if openErr != nil {
		s.logger.Warn("camera open failed", "attempt", a.id, "error", openErr)
	}

	// The stream is held regardless of whether a newer action took over
	// the display while the camera was opening.
	s.commit(nil, func(st *Snapshot) {
		st.Streaming = openErr == nil
		if s.current != a {
			return
		}
		if openErr != nil {
			st.fail(prefixCamera, openErr)
			return
		}
		st.Status = StatusStreaming
	})
	return nil
}

// Capture grabs the current frame and uploads it. It blocks until the
// upload resolves.
func (s *Session) Capture(ctx context.Context) error {
	a, err := s.begin(ctx, func(st *Snapshot) error {
		if !st.Streaming {
			return ErrNotStreaming
		}
		if st.Status == StatusCapturing {
			return ErrBusy
		}
		return nil
	}, func(st *Snapshot) {
		st.Status = StatusCapturing
	})
	if err != nil {
		return err
	}
	defer a.cancel()

	still, err := s.live.Frame()
	if err != nil {
		s.logger.Warn("frame capture failed", "attempt", a.id, "error", err)
		s.commit(a, func(st *Snapshot) {
			st.fail(prefixCamera, err)
		})
		return nil
	}
	s.process(a, still)
	return nil
}

// Pick acquires a still from src and uploads it. It blocks until the upload
// resolves. When src yields no selection the session is left unchanged.
func (s *Session) Pick(ctx context.Context, src capture.Source) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	still, acqErr := src.Acquire(ctx)
	if errors.Is(acqErr, capture.ErrNoSelection) {
		return nil
	}

	a, err := s.begin(ctx, nil, func(st *Snapshot) {
		st.Status = st.resting()
	})
	if err != nil {
		return err
	}
	defer a.cancel()

	if acqErr != nil {
		s.logger.Warn("picked image unusable", "attempt", a.id, "error", acqErr)
		s.commit(a, func(st *Snapshot) {
			st.fail(prefixImage, acqErr)
		})
		return nil
	}
	s.process(a, still)
	return nil
}

// Stop releases the live stream. A streaming session returns to idle; any
// displayed outcome is kept.
func (s *Session) Stop() error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	err := s.live.Close()
	s.commit(nil, func(st *Snapshot) {
		st.Streaming = false
		if st.Status == StatusStreaming || st.Status == StatusCapturing {
			st.Status = StatusIdle
		}
	})
	return err
}

// Reconfigure reopens a running stream with the current constraints. It
// does not start a new attempt, so an upload in flight still lands. It
// does nothing when no stream is open.
func (s *Session) Reconfigure(ctx context.Context) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	s.mu.Lock()
	closed, streaming := s.closed, s.state.Streaming
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !streaming {
		return nil
	}

	openErr := s.live.Open(ctx, s.constraints())
	if openErr != nil {
		s.logger.Warn("camera reopen failed", "error", openErr)
	}
	s.commit(nil, func(st *Snapshot) {
		st.Streaming = openErr == nil
		if openErr == nil {
			return
		}
		// Only the live view is lost; a pending or shown outcome stays.
		if st.Status == StatusStreaming || st.Status == StatusCapturing {
			st.fail(prefixCamera, openErr)
		}
	})
	return nil
}

// Cancel aborts the in-flight upload of the current attempt, which then
// resolves as an upload error. It reports whether there was one.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.state.Status != StatusUploading {
		return false
	}
	s.current.cancel()
	return true
}

// Close tears the session down: the stream is released, pending uploads are
// abandoned, and the preview is revoked. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
	s.previews.Revoke(s.state.PreviewURI)
	s.state = Snapshot{Status: StatusIdle, Attempt: s.state.Attempt + 1}
	s.mu.Unlock()

	s.notifyMu.Lock()
	s.subs = make(map[int]func(Snapshot))
	s.notifyMu.Unlock()

	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	return s.live.Close()
}

// process normalizes still, swaps in its preview and uploads it.
func (s *Session) process(a *attempt, still capture.Still) {
	enc, err := s.normalizer.Normalize(still.Image)
	if err != nil {
		s.logger.Warn("encode failed, nothing uploaded", "attempt", a.id, "error", err)
		s.commit(a, func(st *Snapshot) {
			st.Status = st.resting()
		})
		return
	}

	uri := s.previews.Put(enc.Data, enc.MIMEType)
	if !s.commit(a, func(st *Snapshot) {
		s.previews.Revoke(st.PreviewURI)
		st.PreviewURI = uri
		st.Status = StatusUploading
		st.StatusLine = LineUploading
	}) {
		s.previews.Revoke(uri)
		return
	}

	s.logger.Info("uploading",
		"attempt", a.id,
		"name", still.Name,
		"width", enc.Width,
		"height", enc.Height,
		"bytes", len(enc.Data))

	res, err := s.sender.Send(a.ctx, enc)
	if err != nil {
		if !s.commit(a, func(st *Snapshot) { st.fail(prefixUpload, err) }) {
			s.logger.Info("discarding stale upload error", "attempt", a.id, "error", err)
			return
		}
		args := []any{"attempt", a.id, "error", err}
		var ue *transfer.UploadError
		if errors.As(err, &ue) {
			args = append(args, "status", ue.StatusCode, "server_error", ue.IsServerError())
			if ue.IsTooLarge() {
				args = append(args, "hint", "server body limit exceeded, lower max pixels or quality")
			}
		}
		s.logger.Warn("upload failed", args...)
		return
	}

	if !s.commit(a, func(st *Snapshot) { st.succeed(res.Text) }) {
		s.logger.Info("discarding stale upload result", "attempt", a.id)
		return
	}
	s.logger.Info("upload done", "attempt", a.id, "chars", len(res.Text), "latency_ms", res.LatencyMs)
}

// begin starts a new attempt, clearing the previous outcome. Uploads of
// earlier attempts keep running but can no longer commit. A non-nil guard
// can refuse the attempt based on the current state.
func (s *Session) begin(ctx context.Context, guard func(*Snapshot) error, fn func(*Snapshot)) (*attempt, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if guard != nil {
		if err := guard(&s.state); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	actx, cancel := context.WithCancel(ctx)
	s.state.Attempt++
	a := &attempt{id: s.state.Attempt, ctx: actx, cancel: cancel}
	s.current = a

	s.state.clearOutcome()
	if fn != nil {
		fn(&s.state)
	}
	s.publishLocked()
	return a, nil
}

// commit applies fn if a is still the current attempt, or unconditionally
// when a is nil. It reports whether fn was applied.
func (s *Session) commit(a *attempt, fn func(*Snapshot)) bool {
	s.mu.Lock()
	if s.closed || (a != nil && s.current != a) {
		s.mu.Unlock()
		return false
	}
	fn(&s.state)
	s.publishLocked()
	return true
}

// publishLocked releases s.mu and delivers the new state to observers.
func (s *Session) publishLocked() {
	snap := s.state
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range s.subs {
		fn(snap)
	}
}
