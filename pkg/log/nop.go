package log

import "context"

type nopLogger struct{}

// Nop returns a Logger that discards everything. Intended for tests.
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(ctx context.Context, arg ...any)                   {}
func (nopLogger) Debugf(ctx context.Context, template string, arg ...any) {}
func (nopLogger) Info(ctx context.Context, arg ...any)                    {}
func (nopLogger) Infof(ctx context.Context, template string, arg ...any)  {}
func (nopLogger) Warn(ctx context.Context, arg ...any)                    {}
func (nopLogger) Warnf(ctx context.Context, template string, arg ...any)  {}
func (nopLogger) Error(ctx context.Context, arg ...any)                   {}
func (nopLogger) Errorf(ctx context.Context, template string, arg ...any) {}
func (nopLogger) Fatal(ctx context.Context, arg ...any)                   {}
func (nopLogger) Fatalf(ctx context.Context, template string, arg ...any) {}
