package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance
	Logger = newConsoleLogger(os.Stdout)
)

// Initialize sets up the global logger with appropriate configuration
func Initialize(logLevel string) {
	// Set time format to be more human-readable
	zerolog.TimeFieldFormat = time.RFC3339

	Logger = newConsoleLogger(os.Stdout)
	zerolog.SetGlobalLevel(ParseLevel(logLevel))

	// Replace standard log with zerolog
	log.Logger = Logger
}

// InitializeWithWriter is Initialize with an extra destination, e.g. a log file.
func InitializeWithWriter(logLevel string, extra io.Writer) {
	Initialize(logLevel)
	if extra == nil {
		return
	}
	multi := zerolog.MultiLevelWriter(consoleWriter(os.Stdout), extra)
	Logger = zerolog.New(multi).With().Timestamp().Caller().Logger()
	log.Logger = Logger
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info.
func ParseLevel(logLevel string) zerolog.Level {
	switch logLevel {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// GetForComponent returns a logger with a component field for better filtering
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// FileWriter returns a writer to a log file for optional use alongside console logging
func FileWriter(path string) (io.Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    false,
	}
}

func newConsoleLogger(out io.Writer) zerolog.Logger {
	return zerolog.New(consoleWriter(out)).
		With().
		Timestamp().
		Caller().
		Logger()
}
