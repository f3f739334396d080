package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel    Level = "debug"
	VerboseLevel  Level = "verbose"
	InfoLevel     Level = "info"
	WarningLevel  Level = "warning"
	ErrorLevel    Level = "error"
	CriticalLevel Level = "critical"
	QuietLevel    Level = "quiet"
)

// Levels lists the accepted level names in order of verbosity.
var Levels = []Level{
	DebugLevel, VerboseLevel, InfoLevel, WarningLevel,
	ErrorLevel, CriticalLevel, QuietLevel,
}

// Valid reports whether name is an accepted level name.
func Valid(name string) bool {
	for _, l := range Levels {
		if string(l) == name {
			return true
		}
	}
	return false
}

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case VerboseLevel:
		// zerolog has no level between debug and info; verbose maps to debug
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarningLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	case CriticalLevel:
		level = zerolog.FatalLevel
	case QuietLevel:
		level = zerolog.Disabled
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Core returns the logger for the data-exchange core.
func Core() zerolog.Logger {
	return WithComponent("CORE")
}

// Simulation returns the logger for the simulation-facing endpoint.
func Simulation() zerolog.Logger {
	return WithComponent("SIMULATION")
}

// Backend returns the logger for the backend-facing endpoint.
func Backend() zerolog.Logger {
	return WithComponent("BACKEND")
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
