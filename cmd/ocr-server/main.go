// ocr-server accepts images on POST /api/ocr and returns recognized text.
// In production it also hosts the client UI bundle. With -dashboard it
// drives a local camera session that can be controlled over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-snapocr/internal/config"
	"github.com/teslashibe/go-snapocr/internal/log"
	"github.com/teslashibe/go-snapocr/pkg/camera"
	"github.com/teslashibe/go-snapocr/pkg/capture"
	"github.com/teslashibe/go-snapocr/pkg/normalize"
	"github.com/teslashibe/go-snapocr/pkg/recognize"
	"github.com/teslashibe/go-snapocr/pkg/session"
	"github.com/teslashibe/go-snapocr/pkg/transfer"
	"github.com/teslashibe/go-snapocr/pkg/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ocr-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	port := flag.String("port", cfg.Port, "Listen port (PORT)")
	recognizer := flag.String("recognizer", cfg.Recognizer, "Recognizer: placeholder, vision, gemini, tesseract")
	dashboard := flag.Bool("dashboard", false, "Drive a local camera session from the web UI")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec, err := recognize.New(ctx, *recognizer, recognize.Options{
		GoogleAPIKey: cfg.GoogleAPIKey,
		Languages:    languagesFor(*recognizer, cfg),
		Model:        cfg.GeminiModel,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	log.Info("recognizer ready", "kind", *recognizer)
	if _, ok := rec.(recognize.Placeholder); ok {
		log.Warn("placeholder recognizer returns byte counts, not text")
	}

	opts := []web.Option{web.WithLogger(logger)}
	if cfg.Production {
		log.Info("starting server in production mode", "static", cfg.StaticDir)
		opts = append(opts, web.WithStaticDir(cfg.StaticDir))
	}

	if *dashboard {
		sess, cams, err := newDashboardSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer sess.Close()
		opts = append(opts, web.WithSession(sess), web.WithCameraManager(cams))
	}

	srv := web.NewServer(rec, opts...)
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	return srv.Listen(":" + *port)
}

// newDashboardSession wires a camera session that uploads to cfg.ServerURL,
// normally this same server.
func newDashboardSession(ctx context.Context, cfg *config.Config) (*session.Session, *camera.Manager, error) {
	cams, err := camera.NewManagerWithPreset(cfg.CameraPreset)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("dashboard session", "device", cfg.CameraDevice, "preset", cfg.CameraPreset, "upload_to", cfg.ServerURL)

	sender := transfer.NewClient(
		transfer.WithBaseURL(cfg.ServerURL),
		transfer.WithTimeout(cfg.UploadTimeout),
		transfer.WithLogger(log.L()),
	)
	sess := session.New(capture.NewGocvCamera(cfg.CameraDevice), sender,
		session.WithConstraints(cams.Get),
		session.WithNormalizer(normalize.New(cfg.MaxPixels, cfg.Quality)),
		session.WithLogger(log.L()),
	)

	// New constraints take effect immediately on a running stream.
	cams.OnChange = func(camera.Constraints) error {
		return sess.Reconfigure(ctx)
	}
	return sess, cams, nil
}

func languagesFor(kind string, cfg *config.Config) []string {
	if kind == recognize.KindTesseract {
		return cfg.TesseractLangs
	}
	return nil
}
