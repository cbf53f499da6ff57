// Package logging provides leveled operational logging and a JSONL decision
// trace for tango.
//   - NewLogger returns a slog.Logger for stderr.
//   - DecisionLogger appends one JSON object per event to .tango/decisions.jsonl
//     and doubles as an interaction.Tracer, so every rule firing of a debug
//     run is on record.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/tango/internal/interaction"
)

// LevelTrace sits below Debug. At this level interpreter prompts and raw
// responses are logged in full.
const LevelTrace = slog.LevelDebug - 4

// DecisionFile is the name of the JSONL trace inside the state directory.
const DecisionFile = "decisions.jsonl"

// ParseLevel maps "info", "debug" or "trace" (any case) to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled text logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DecisionLogger writes structured events to a JSONL file. It is safe for
// concurrent use, and every method is a no-op on a nil receiver.
type DecisionLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDecisionLogger opens dir/decisions.jsonl for append when level is debug
// or trace. At info level, or when the file cannot be opened, it returns nil.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, DecisionFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &DecisionLogger{file: f}
}

// Log writes event as one JSONL line with a "time" field added. The caller's
// map is not modified.
func (dl *DecisionLogger) Log(event map[string]any) {
	if dl == nil || dl.file == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	_, _ = dl.file.Write(data)
}

// Trace records an interaction rule firing.
func (dl *DecisionLogger) Trace(t interaction.Transition) {
	dl.Log(t.Fields())
}

// Tracer returns dl as an interaction.Tracer, or nil when dl is nil so the
// engine skips tracing entirely.
func (dl *DecisionLogger) Tracer() interaction.Tracer {
	if dl == nil {
		return nil
	}
	return dl
}

// Close closes the underlying file.
func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file != nil {
		dl.file.Close()
		dl.file = nil
	}
}
