package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the process-wide zerolog logger.
type Config struct {
	Level      string // trace, debug, info, warn, error
	Format     string // json, console
	TimeFormat string
	Output     string // stdout, stderr, or file path
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
		Output:     "stdout",
	}
}

// Setup installs the global logger. The returned closer releases a log file
// when Output names one.
func Setup(cfg Config) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var (
		output io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
		closer = file
	}

	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: cfg.TimeFormat}
	}
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return closer, nil
}

// WithComponent returns a child of the global logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
