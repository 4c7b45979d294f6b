package telemetry

import (
	"context"

	"go.uber.org/zap"
)

// ZapLogger wraps a *zap.Logger for runtime logging. Keyvals are flattened
// into zap.Any pairs, matching the loosely-typed keyvals convention used
// throughout the workflow and service layers.
type ZapLogger struct {
	base *zap.Logger
}

// NewZapLogger constructs a Logger backed by the given zap logger. Pass
// zap.NewProduction() or zap.NewDevelopment() depending on LOG_FORMAT.
func NewZapLogger(base *zap.Logger) Logger {
	return &ZapLogger{base: base}
}

func (l *ZapLogger) fields(keyvals ...any) []zap.Field {
	fields := make([]zap.Field, 0, len(keyvals)/2+1)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}
	return fields
}

func (l *ZapLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.base.Debug(msg, l.fields(keyvals...)...)
}

func (l *ZapLogger) Info(_ context.Context, msg string, keyvals ...any) {
	l.base.Info(msg, l.fields(keyvals...)...)
}

func (l *ZapLogger) Warn(_ context.Context, msg string, keyvals ...any) {
	l.base.Warn(msg, l.fields(keyvals...)...)
}

func (l *ZapLogger) Error(_ context.Context, msg string, keyvals ...any) {
	l.base.Error(msg, l.fields(keyvals...)...)
}
