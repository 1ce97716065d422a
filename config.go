package wsgi

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingAddress is returned when the listen address is empty.
var ErrMissingAddress = errors.New("server address is required")

// Config holds gateway configuration with environment variable support.
type Config struct {
	// Listen address
	Addr string `env:"WSGI_ADDR" envDefault:":8080"`

	// Fixed wsgi.url_scheme; empty means derive it from the connection.
	URLScheme string `env:"WSGI_URL_SCHEME" envDefault:""`

	// Request body limit in bytes, 0 for none.
	MaxBodyBytes int64 `env:"WSGI_MAX_BODY_BYTES" envDefault:"10485760"` // 10MB

	// Wrap the application with the conformance validator.
	Validate bool `env:"WSGI_VALIDATE" envDefault:"true"`

	AccessLog bool       `env:"WSGI_ACCESS_LOG" envDefault:"true"`
	LogLevel  slog.Level `env:"WSGI_LOG_LEVEL" envDefault:"INFO"`

	// Timeouts
	ReadTimeout     time.Duration `env:"WSGI_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WSGI_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"WSGI_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"WSGI_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// LoadConfig reads the configuration from the environment after loading the
// given .env files (".env" if none are named). Missing .env files are not an
// error.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// NewFromConfig creates a Gateway for app from configuration. Additional
// options override config values. The validator isn't applied here, since
// this package can't import it; see Config.Validate.
func NewFromConfig(cfg Config, app App, opts ...Option) (*Gateway, error) {
	if cfg.Addr == "" {
		return nil, ErrMissingAddress
	}
	configOpts := []Option{
		WithAccessLog(cfg.AccessLog),
	}
	if cfg.URLScheme != "" {
		if cfg.URLScheme != "http" && cfg.URLScheme != "https" {
			return nil, fmt.Errorf("unsupported url scheme %q", cfg.URLScheme)
		}
		configOpts = append(configOpts, WithURLScheme(cfg.URLScheme))
	}
	if cfg.MaxBodyBytes > 0 {
		configOpts = append(configOpts, WithMaxBodyBytes(cfg.MaxBodyBytes))
	}
	configOpts = append(configOpts, opts...)
	return NewGateway(app, configOpts...), nil
}
