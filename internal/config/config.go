// Package config loads go-snapocr settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultPort          = "8080"
	DefaultServerURL     = "http://localhost:8080"
	DefaultUploadTimeout = 60 * time.Second
	DefaultMaxPixels     = 2_000_000
	DefaultQuality       = 92
	DefaultStaticDir     = "./client-dist"
	DefaultRecognizer    = "placeholder"
	DefaultCameraPreset  = "default"

	// EnvFileVar points at an alternative .env file.
	EnvFileVar = "SNAPOCR_ENV_FILE"
)

// Config holds everything the server and the capture client need.
type Config struct {
	Port       string
	Production bool
	LogLevel   string

	// Client side
	ServerURL     string
	UploadTimeout time.Duration
	MaxPixels     int
	Quality       int
	CameraDevice  int
	CameraPreset  string

	// Server side
	StaticDir      string
	Recognizer     string
	GeminiModel    string
	GoogleAPIKey   string
	TesseractLangs []string
}

// Load reads .env (if present) and then the process environment.
// Values already set in the environment win over the file.
func Load() (*Config, error) {
	envPath := resolveEnvPath()
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:         getEnvWithDefault("PORT", DefaultPort),
		Production:   os.Getenv("GO_ENV") == "production",
		LogLevel:     getEnvWithDefault("LOG_LEVEL", "info"),
		ServerURL:    strings.TrimSuffix(getEnvWithDefault("SNAPOCR_SERVER", DefaultServerURL), "/"),
		CameraPreset: getEnvWithDefault("SNAPOCR_CAMERA_PRESET", DefaultCameraPreset),
		StaticDir:    getEnvWithDefault("SNAPOCR_STATIC_DIR", DefaultStaticDir),
		Recognizer:   strings.ToLower(getEnvWithDefault("SNAPOCR_RECOGNIZER", DefaultRecognizer)),
		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:  os.Getenv("SNAPOCR_GEMINI_MODEL"),
	}

	var err error
	if cfg.UploadTimeout, err = durationEnv("SNAPOCR_UPLOAD_TIMEOUT", DefaultUploadTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxPixels, err = intEnv("SNAPOCR_MAX_PIXELS", DefaultMaxPixels); err != nil {
		return nil, err
	}
	if cfg.Quality, err = intEnv("SNAPOCR_QUALITY", DefaultQuality); err != nil {
		return nil, err
	}
	if cfg.CameraDevice, err = intEnv("SNAPOCR_CAMERA_DEVICE", 0); err != nil {
		return nil, err
	}
	cfg.TesseractLangs = splitList(getEnvWithDefault("TESSERACT_LANGS", "eng"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.MaxPixels <= 0 {
		return fmt.Errorf("config: SNAPOCR_MAX_PIXELS must be positive, got %d", c.MaxPixels)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("config: SNAPOCR_QUALITY must be between 1 and 100, got %d", c.Quality)
	}
	if c.UploadTimeout < 0 {
		return fmt.Errorf("config: SNAPOCR_UPLOAD_TIMEOUT must not be negative")
	}
	switch c.Recognizer {
	case "placeholder", "vision", "gemini", "tesseract":
	default:
		return fmt.Errorf("config: unknown recognizer %q", c.Recognizer)
	}
	return nil
}

func resolveEnvPath() string {
	if alt := os.Getenv(EnvFileVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		return ".env"
	}
	return ""
}

func getEnvWithDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// durationEnv accepts Go durations ("45s") or bare seconds ("45").
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
