// snap captures an image from a file or the camera, uploads it to an
// ocr-server and prints the recognized text.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.design/x/clipboard"

	"github.com/teslashibe/go-snapocr/internal/config"
	"github.com/teslashibe/go-snapocr/internal/log"
	"github.com/teslashibe/go-snapocr/pkg/camera"
	"github.com/teslashibe/go-snapocr/pkg/capture"
	"github.com/teslashibe/go-snapocr/pkg/normalize"
	"github.com/teslashibe/go-snapocr/pkg/session"
	"github.com/teslashibe/go-snapocr/pkg/transfer"
)

type cliOptions struct {
	server     string
	timeout    time.Duration
	copy       bool
	jsonOutput bool
	verbose    bool

	preset  string
	device  int
	delay   time.Duration
	display int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return newRootCmd(cfg).ExecuteContext(ctx)
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:           "snap",
		Short:         "Capture an image and extract its text with an ocr-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := cfg.LogLevel
			if opts.verbose {
				level = "debug"
			} else if level == "info" {
				level = "warn"
			}
			log.Init(level)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.server, "server", cfg.ServerURL, "Server base URL (SNAPOCR_SERVER)")
	pf.DurationVar(&opts.timeout, "timeout", cfg.UploadTimeout, "Upload timeout, 0 disables (SNAPOCR_UPLOAD_TIMEOUT)")
	pf.BoolVar(&opts.copy, "copy", false, "Copy the recognized text to the clipboard")
	pf.BoolVar(&opts.jsonOutput, "json", false, "Print the final session state as JSON")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(
		newPickCmd(cfg, opts),
		newLiveCmd(cfg, opts),
		newScreenCmd(cfg, opts),
		newFolderCmd(cfg, opts),
		newWatchCmd(opts),
		newHealthCmd(opts),
	)
	return cmd
}

func newPickCmd(cfg *config.Config, opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pick <file>",
		Short: "Upload an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := newSession(cfg, opts, camera.DefaultConstraints)
			defer sess.Close()

			if err := sess.Pick(cmd.Context(), capture.PathPicker(args[0])); err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), sess.Snapshot(), opts)
		},
	}
}

func newLiveCmd(cfg *config.Config, opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Open the camera, capture one frame and upload it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			preset := camera.GetPreset(opts.preset)
			if preset == nil {
				return fmt.Errorf("unknown preset %q (have %s)", opts.preset, strings.Join(camera.PresetNames(), ", "))
			}
			constraints := *preset
			if cmd.Flags().Changed("device") {
				constraints.Device = opts.device
			}

			sess := newSession(cfg, opts, func() camera.Constraints { return constraints })
			defer sess.Close()

			ctx := cmd.Context()
			if err := sess.StartCamera(ctx); err != nil {
				return err
			}
			if snap := sess.Snapshot(); snap.Status == session.StatusError {
				return errors.New(snap.Err())
			}

			// Let auto exposure settle before grabbing the frame.
			select {
			case <-time.After(opts.delay):
			case <-ctx.Done():
				return ctx.Err()
			}

			if err := sess.Capture(ctx); err != nil {
				return err
			}
			sess.Stop()
			return report(cmd.OutOrStdout(), sess.Snapshot(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.preset, "preset", cfg.CameraPreset, "Camera preset: "+strings.Join(camera.PresetNames(), ", "))
	cmd.Flags().IntVar(&opts.device, "device", cfg.CameraDevice, "Camera device index (SNAPOCR_CAMERA_DEVICE)")
	cmd.Flags().DurationVar(&opts.delay, "delay", time.Second, "Wait before capturing")
	return cmd
}

func newScreenCmd(cfg *config.Config, opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Capture the screen and upload it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := newSession(cfg, opts, camera.DefaultConstraints)
			defer sess.Close()

			if err := sess.Pick(cmd.Context(), capture.Screen{Display: opts.display}); err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), sess.Snapshot(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.display, "display", capture.AllDisplays, "Display index, -1 for all displays")
	return cmd
}

func newFolderCmd(cfg *config.Config, opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "folder <dir>",
		Short: "Upload every image dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := capture.WatchFolder(args[0], log.L())
			if err != nil {
				return fmt.Errorf("watch %s: %w", args[0], err)
			}
			defer folder.Close()

			sess := newSession(cfg, opts, camera.DefaultConstraints)
			defer sess.Close()

			ctx := cmd.Context()
			log.Info("watching for images", "dir", args[0])
			for {
				picker, err := folder.Next(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if err := sess.Pick(ctx, picker); err != nil {
					return err
				}
				// One bad file should not end the watch.
				if err := report(cmd.OutOrStdout(), sess.Snapshot(), opts); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
			}
		},
	}
}

func newWatchCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow a dashboard session on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func newHealthCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := transfer.NewClient(
				transfer.WithBaseURL(opts.server),
				transfer.WithTimeout(opts.timeout),
				transfer.WithLogger(log.L()),
			)
			hb, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", hb.Status, hb.Time.Format(time.RFC3339))
			return nil
		},
	}
}

func newSession(cfg *config.Config, opts *cliOptions, constraints func() camera.Constraints) *session.Session {
	sender := transfer.NewClient(
		transfer.WithBaseURL(opts.server),
		transfer.WithTimeout(opts.timeout),
		transfer.WithLogger(log.L()),
	)
	sess := session.New(capture.NewGocvCamera(cfg.CameraDevice), sender,
		session.WithConstraints(constraints),
		session.WithNormalizer(normalize.New(cfg.MaxPixels, cfg.Quality)),
		session.WithLogger(log.L()),
	)
	log.Debug("session ready", "server", opts.server, "max_pixels", cfg.MaxPixels, "quality", cfg.Quality)
	if opts.verbose {
		sess.Subscribe(func(snap session.Snapshot) {
			if snap.StatusLine != "" {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", snap.Status, snap.StatusLine)
			}
		})
	}
	return sess
}

// report prints the outcome and fails when the session ended in error.
func report(w io.Writer, snap session.Snapshot, opts *cliOptions) error {
	if opts.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	}

	switch snap.Status {
	case session.StatusError:
		return errors.New(snap.Err())
	case session.StatusDone:
	default:
		return fmt.Errorf("nothing uploaded (state %s)", snap.Status)
	}

	text := snap.Result()
	if !opts.jsonOutput {
		fmt.Fprintln(w, text)
	}
	if opts.copy {
		if err := copyText(text); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	}
	return nil
}

func copyText(text string) error {
	if err := clipboard.Init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// watch prints dashboard session events until ctx ends or the server
// closes the connection.
func watch(ctx context.Context, w io.Writer, opts *cliOptions) error {
	u, err := url.Parse(opts.server)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/session"

	logger := log.Component("snap.watch")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()
	logger.Debug("connected", "url", u.String())

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	var last uint64
	var lastStatus session.Status
	for {
		var ev struct {
			Type string           `json:"type"`
			Data session.Snapshot `json:"data"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Debug("watch ended", "attempt", last)
				return nil
			}
			return err
		}
		snap := ev.Data
		if snap.Attempt == last && snap.Status == lastStatus {
			continue
		}
		last, lastStatus = snap.Attempt, snap.Status

		if opts.jsonOutput {
			json.NewEncoder(w).Encode(snap)
			continue
		}
		line := snap.StatusLine
		if snap.Status == session.StatusDone {
			line = snap.Result()
		}
		fmt.Fprintf(w, "#%d %-9s %s\n", snap.Attempt, snap.Status, line)
		if opts.copy && snap.Status == session.StatusDone {
			if err := copyText(snap.Result()); err != nil {
				logger.Warn("clipboard copy failed", "error", err)
			}
		}
	}
}
