// Package logger defines the logging interface used throughout the console.
// Different implementations are used for different contexts: a zerolog-backed
// console logger for CLI commands and a silent logger for TUI mode.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ConsoleLogger writes human-readable logs to stderr via zerolog's console writer.
type ConsoleLogger struct {
	log zerolog.Logger
}

func NewConsoleLogger() *ConsoleLogger {
	return newConsoleLogger(os.Stderr, zerolog.InfoLevel)
}

// NewDebugLogger returns a console logger that also emits debug messages.
func NewDebugLogger() *ConsoleLogger {
	return newConsoleLogger(os.Stderr, zerolog.DebugLevel)
}

func newConsoleLogger(out io.Writer, level zerolog.Level) *ConsoleLogger {
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	return &ConsoleLogger{
		log: zerolog.New(writer).With().Timestamp().Logger().Level(level),
	}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	c.log.Info().Msg(fmt.Sprintf(msg, args...))
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	c.log.Error().Msg(fmt.Sprintf(msg, args...))
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	c.log.Debug().Msg(fmt.Sprintf(msg, args...))
}

// SilentLogger discards all log messages.
// Used when running in TUI mode to prevent log output from corrupting the display.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}
