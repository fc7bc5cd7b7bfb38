package dcontext

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger provides a leveled-logging interface.
type Logger interface {
	// standard logger methods
	Print(args ...any)
	Printf(format string, args ...any)
	Println(args ...any)

	// Leveled methods, from logrus
	Debug(args ...any)
	Debugf(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Info(args ...any)
	Infof(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	WithError(err error) *logrus.Entry
}

type loggerKey struct{}

// WithLogger creates a new context with provided logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLoggerWithField returns a logger instance with the specified field key
// and value without affecting the context.
func GetLoggerWithField(ctx context.Context, key, value any) Logger {
	return getLogrusLogger(ctx).WithField(fmt.Sprint(key), value)
}

// GetLoggerWithFields returns a logger instance with the specified fields
// without affecting the context.
func GetLoggerWithFields(ctx context.Context, fields map[string]any) Logger {
	return getLogrusLogger(ctx).WithFields(logrus.Fields(fields))
}

// GetLogger returns the logger from the current context, if present,
// falling back to the standard logger.
func GetLogger(ctx context.Context) Logger {
	return getLogrusLogger(ctx)
}

// getLogrusLogger returns the logrus logger for the context. Only use this
// function if specific logrus functionality is required.
func getLogrusLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

var _ Logger = (*logrus.Entry)(nil)
