// Package logging builds the process logger and adapts it to the
// libraries that bring their own logging interfaces.
package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

// New returns a logger writing to stderr, either as JSON lines or as
// human readable console output.
func New(level string, json bool) *log.Logger {
	var w log.Writer
	if json {
		w = &log.IOWriter{Writer: os.Stderr}
	} else {
		w = &log.ConsoleWriter{Writer: os.Stderr, ColorOutput: log.IsTerminal(os.Stderr.Fd())}
	}
	return &log.Logger{
		Level:      log.ParseLevel(level),
		Caller:     1,
		TimeFormat: "2006-01-02 15:04:05",
		Writer:     w,
	}
}

// NewWriter returns a JSON logger writing to w. Used by tests to inspect output.
func NewWriter(w io.Writer) *log.Logger {
	return &log.Logger{
		Level:  log.DebugLevel,
		Writer: &log.IOWriter{Writer: w},
	}
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return NewWriter(io.Discard)
}

// CronLogger adapts a logger to cron.Logger.
type CronLogger struct {
	Logger *log.Logger
}

// Info logs routine cron messages at debug level.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.Logger.Debug().KeysAndValues(keysAndValues...).Msg("cron: " + msg)
}

// Error logs cron failures.
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.Logger.Error().Err(err).KeysAndValues(keysAndValues...).Msg("cron: " + msg)
}
