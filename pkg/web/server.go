// Package web serves the recognition endpoint, the bundled UI, and an
// optional dashboard that drives a capture session over HTTP.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-snapocr/pkg/camera"
	"github.com/teslashibe/go-snapocr/pkg/hub"
	"github.com/teslashibe/go-snapocr/pkg/recognize"
	"github.com/teslashibe/go-snapocr/pkg/session"
)

// DefaultBodyLimit caps request bodies at 6 MB.
const DefaultBodyLimit = 6 * 1024 * 1024

// Option configures a Server.
type Option func(*Server)

// WithStaticDir serves the UI bundle in dir, with index.html as the
// fallback for unknown GET paths. An empty dir disables static hosting.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithSession exposes sess through the dashboard routes.
func WithSession(sess *session.Session) Option {
	return func(s *Server) { s.session = sess }
}

// WithCameraManager exposes the constraints manager on /api/camera.
func WithCameraManager(m *camera.Manager) Option {
	return func(s *Server) { s.cameras = m }
}

// WithBodyLimit overrides DefaultBodyLimit.
func WithBodyLimit(n int) Option {
	return func(s *Server) { s.bodyLimit = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server is the HTTP front end.
type Server struct {
	app        *fiber.App
	recognizer recognize.Recognizer
	logger     *slog.Logger

	staticDir string
	bodyLimit int
	session   *session.Session
	cameras   *camera.Manager

	sessionHub  *hub.Hub
	stopHub     context.CancelFunc
	unsubscribe func()
}

// NewServer builds the app around rec.
func NewServer(rec recognize.Recognizer, opts ...Option) *Server {
	s := &Server{
		recognizer: rec,
		bodyLimit:  DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "web")

	app := fiber.New(fiber.Config{
		AppName:               "snapocr",
		DisableStartupMessage: true,
		BodyLimit:             s.bodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New())
	app.Use(compress.New())

	app.Get("/heartbeat", s.handleHeartbeat)

	api := app.Group("/api")
	api.Post("/ocr", s.handleOCR)

	if s.cameras != nil {
		api.Get("/camera", s.handleGetCamera)
		api.Post("/camera", s.handleSetCamera)
		api.Get("/camera/presets", s.handleCameraPresets)
	}

	if s.session != nil {
		s.sessionHub = hub.New("session", s.logger)
		ctx, cancel := context.WithCancel(context.Background())
		s.stopHub = cancel
		go s.sessionHub.Run(ctx)
		s.sessionHub.Handle(s.handleSessionCommand)

		s.unsubscribe = s.session.Subscribe(s.publishSnapshot)
		s.publishSnapshot(s.session.Snapshot())

		sess := api.Group("/session")
		sess.Get("/", s.handleGetSession)
		sess.Post("/camera", s.handleStartCamera)
		sess.Post("/capture", s.handleCapture)
		sess.Post("/pick", s.handlePick)
		sess.Post("/stop", s.handleStop)
		sess.Post("/cancel", s.handleCancel)

		app.Get("/preview/:id", s.handlePreview)

		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/session", websocket.New(s.handleSessionWS))
	}

	// Static hosting goes last so the index fallback cannot shadow the API.
	if s.staticDir != "" {
		app.Static("/", s.staticDir)
		index := filepath.Join(s.staticDir, "index.html")
		app.Get("/*", func(c *fiber.Ctx) error {
			return c.SendFile(index)
		})
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr, e.g. ":8080".
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr, "static", s.staticDir, "session", s.session != nil)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops the server and detaches from the session. The session
// itself is left open for its owner to close.
func (s *Server) Shutdown() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	return s.app.Shutdown()
}

func (s *Server) publishSnapshot(snap session.Snapshot) {
	if err := s.sessionHub.Publish("session", snap); err != nil {
		s.logger.Warn("publish snapshot failed", "error", err)
	}
}

// handleError renders every error as {"error": message}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
