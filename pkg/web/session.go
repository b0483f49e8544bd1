package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-snapocr/pkg/capture"
	"github.com/teslashibe/go-snapocr/pkg/hub"
	"github.com/teslashibe/go-snapocr/pkg/preview"
	"github.com/teslashibe/go-snapocr/pkg/session"
)

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	return c.JSON(s.session.Snapshot())
}

// handleStartCamera opens the stream synchronously; the outcome, including
// camera errors, is in the returned snapshot.
func (s *Server) handleStartCamera(c *fiber.Ctx) error {
	if err := s.session.StartCamera(context.Background()); err != nil {
		return sessionError(err)
	}
	return c.JSON(s.session.Snapshot())
}

// handleCapture starts a capture and returns immediately; progress is
// pushed on /ws/session.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	if !s.session.Snapshot().Streaming {
		return sessionError(session.ErrNotStreaming)
	}
	go func() {
		if err := s.session.Capture(context.Background()); err != nil {
			s.logger.Warn("capture refused", "error", err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(s.session.Snapshot())
}

// handlePick uses an uploaded "image" part as the picked file. A request
// without one is an empty selection and changes nothing.
func (s *Server) handlePick(c *fiber.Ctx) error {
	name, data, _, err := formImage(c, "image")
	if err != nil || len(data) == 0 {
		return c.JSON(s.session.Snapshot())
	}
	go func() {
		if err := s.session.Pick(context.Background(), capture.BytesPicker(name, data)); err != nil {
			s.logger.Warn("pick refused", "error", err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(s.session.Snapshot())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.session.Stop(); err != nil {
		s.logger.Warn("stop failed", "error", err)
	}
	return c.JSON(s.session.Snapshot())
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	cancelled := s.session.Cancel()
	return c.JSON(fiber.Map{
		"cancelled": cancelled,
		"session":   s.session.Snapshot(),
	})
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	entry, ok := s.session.Previews().Get(preview.Scheme + c.Params("id"))
	if !ok {
		return fiber.ErrNotFound
	}
	c.Set(fiber.HeaderContentType, entry.MIMEType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(entry.Data)
}

func (s *Server) handleSessionWS(c *websocket.Conn) {
	client := hub.NewClient(s.sessionHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// handleSessionCommand runs a command sent on /ws/session. Outcomes reach
// the client as the usual snapshot broadcasts.
func (s *Server) handleSessionCommand(c *hub.Client, data []byte) {
	cmd, err := hub.ParseCommand(data)
	if err != nil {
		s.logger.Warn("bad session command", "client", c.ID, "error", err)
		return
	}
	s.logger.Debug("session command", "client", c.ID, "type", cmd.Type)

	switch cmd.Type {
	case "camera":
		err = s.session.StartCamera(context.Background())
	case "capture":
		go func() {
			if err := s.session.Capture(context.Background()); err != nil {
				s.logger.Warn("capture refused", "client", c.ID, "error", err)
			}
		}()
	case "stop":
		err = s.session.Stop()
	case "cancel":
		s.session.Cancel()
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}
	if err != nil {
		s.logger.Warn("session command failed", "client", c.ID, "type", cmd.Type, "error", err)
	}
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotStreaming), errors.Is(err, session.ErrBusy):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, session.ErrClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
