// Package logging provides structured logging for the client library and CLI.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger.
type Options struct {
	// Console is where human-readable output goes (nil = stderr).
	// Stdout is reserved for command results.
	Console io.Writer

	// File enables JSON logging to a rotated file (empty = no file logging).
	File string

	// Quiet disables console output. File output is unaffected.
	Quiet bool
}

// Logger wraps zerolog with console and optional rotated-file output.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer // current output writer
	file   *lumberjack.Logger
}

// NewLogger creates a new logger from opts.
func NewLogger(opts Options) *Logger {
	l := &Logger{}

	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}

	var console io.Writer
	if !opts.Quiet {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		console = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	l.output = l.combine(console)
	l.zlog = zerolog.New(l.output).With().Timestamp().Logger()
	return l
}

// NewDefaultCLILogger creates a default CLI logger writing to stderr.
func NewDefaultCLILogger() *Logger {
	return NewLogger(Options{})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

func (l *Logger) combine(console io.Writer) io.Writer {
	switch {
	case console != nil && l.file != nil:
		return zerolog.MultiLevelWriter(console, l.file)
	case l.file != nil:
		return l.file
	case console != nil:
		return console
	default:
		return io.Discard
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Child returns a Logger that shares this logger's output and adds the
// fields built by fn.
func (l *Logger) Child(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{
		zlog:   fn(l.zlog.With()).Logger(),
		output: l.output,
		file:   l.file,
	}
}

// SetOutput changes the console writer for the logger.
// This is useful for redirecting logs through progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = l.combine(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	})
	l.zlog = zerolog.New(l.output).With().Timestamp().Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure global logger
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
