package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New configures and returns a zerolog logger writing to stdout
func New(level, environment string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, environment)
}

// NewWithWriter configures a zerolog logger writing to out
func NewWithWriter(out io.Writer, level, environment string) zerolog.Logger {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	if environment == "development" {
		// Pretty console output for development
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	}

	// JSON output for production
	return zerolog.New(out).With().Timestamp().Logger()
}
