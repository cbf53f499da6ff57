package interpret

import (
	"context"
	"log/slog"

	"github.com/nvandessel/tango/internal/logging"
)

// FallbackInterpreter tries a primary interpreter and falls back to a
// secondary one when the primary is unavailable or fails.
type FallbackInterpreter struct {
	primary   Interpreter
	secondary Interpreter
	logger    *slog.Logger
}

// NewFallbackInterpreter wraps primary with secondary as a fallback.
func NewFallbackInterpreter(primary, secondary Interpreter, logger *slog.Logger) *FallbackInterpreter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FallbackInterpreter{primary: primary, secondary: secondary, logger: logger}
}

// Interpret uses the primary when available, the secondary otherwise or on
// primary error. Context cancellation is not retried.
func (f *FallbackInterpreter) Interpret(ctx context.Context, prompt string) (*Interpretation, error) {
	if f.primary.Available() {
		result, err := f.primary.Interpret(ctx, prompt)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		f.logger.Warn("interpreter failed, falling back", "error", err)
	}
	return f.secondary.Interpret(ctx, prompt)
}

// Available reports whether either interpreter is available.
func (f *FallbackInterpreter) Available() bool {
	return f.primary.Available() || f.secondary.Available()
}
