// Package logging provides the default api.Logger implementation, backed
// by go.uber.org/zap.
package logging

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-ws/api"
)

// ZapLogger adapts *zap.Logger to api.Logger.
type ZapLogger struct {
	l *zap.Logger
}

// New returns a ZapLogger wrapping a production zap.Logger. Construction
// failures fall back to a no-op zap.Logger rather than panicking, since a
// logging backend failing to start should never take down the client.
func New() *ZapLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

// NewDevelopment returns a ZapLogger configured for human-readable
// console output at debug level, suitable for local debugging.
func NewDevelopment() *ZapLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

func (z *ZapLogger) Debug(msg string, fields ...any) {
	z.l.Sugar().Debugw(msg, fields...)
}

func (z *ZapLogger) Error(msg string, fields ...any) {
	z.l.Sugar().Errorw(msg, fields...)
}

// With returns a derived ZapLogger carrying fields on every subsequent
// call. fields must come in alternating key/value pairs, matching
// zap.SugaredLogger.With.
func (z *ZapLogger) With(fields ...any) api.Logger {
	return &ZapLogger{l: z.l.Sugar().With(fields...).Desugar()}
}

// Sync flushes any buffered log entries, per zap's usual shutdown idiom.
func (z *ZapLogger) Sync() error {
	return z.l.Sync()
}

var _ api.Logger = (*ZapLogger)(nil)
