package web

import (
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-snapocr/pkg/camera"
	"github.com/teslashibe/go-snapocr/pkg/recognize"
)

// invalidPayload is reported for any request the recognizer cannot take.
const invalidPayload = "Invalid payload"

var errInvalidPayload = errors.New("web: invalid payload")

// OCRRequest is the JSON form of a recognition request.
type OCRRequest struct {
	ImageBase64 *string `json:"imageBase64"`
	MIMEType    *string `json:"mimeType"`
}

func (s *Server) handleHeartbeat(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// handleOCR accepts either a multipart "image" part or a JSON body.
func (s *Server) handleOCR(c *fiber.Ctx) error {
	req, err := s.parseOCRRequest(c)
	if err != nil {
		s.logger.Debug("rejected ocr payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": invalidPayload})
	}

	start := time.Now()
	res, err := s.recognizer.Recognize(c.UserContext(), req)
	if err != nil {
		s.logger.Warn("recognition failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info("recognized",
		"mime", req.MIMEType,
		"bytes", len(req.ImageBase64),
		"chars", len(res.Text),
		"latency_ms", time.Since(start).Milliseconds())
	return c.JSON(res)
}

func (s *Server) parseOCRRequest(c *fiber.Ctx) (recognize.Request, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		name, data, mimeType, err := formImage(c, "image")
		if err != nil {
			return recognize.Request{}, err
		}
		if mimeType == "" {
			mimeType = mimeFromName(name)
		}
		return recognize.NewRequest(data, mimeType), nil
	}

	var body OCRRequest
	if err := c.BodyParser(&body); err != nil {
		return recognize.Request{}, err
	}
	if body.ImageBase64 == nil || body.MIMEType == nil {
		return recognize.Request{}, errInvalidPayload
	}
	return recognize.Request{ImageBase64: *body.ImageBase64, MIMEType: *body.MIMEType}, nil
}

// formImage reads the named multipart file part fully.
func formImage(c *fiber.Ctx, field string) (name string, data []byte, mimeType string, err error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, "", err
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, "", err
	}
	return fh.Filename, data, fh.Header.Get(fiber.HeaderContentType), nil
}

func mimeFromName(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.cameras.JSON())
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, invalidPayload)
	}
	if err := s.cameras.Update(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.cameras.JSON())
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}
