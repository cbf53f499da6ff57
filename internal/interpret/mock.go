package interpret

import (
	"context"
	"sync"
)

// MockInterpreter implements Interpreter for testing purposes.
// It returns a configured interpretation or error and records every prompt.
type MockInterpreter struct {
	mu sync.Mutex

	result    *Interpretation
	err       error
	available bool

	// Calls records the prompts passed to Interpret.
	Calls []string
}

// NewMockInterpreter creates a MockInterpreter that is available and
// returns a two-pole light relation by default.
func NewMockInterpreter() *MockInterpreter {
	return &MockInterpreter{
		available: true,
		Calls:     make([]string, 0),
	}
}

// WithResult configures the interpretation returned by Interpret.
func (m *MockInterpreter) WithResult(result *Interpretation) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	return m
}

// WithError configures the error returned by Interpret.
func (m *MockInterpreter) WithError(err error) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithAvailable configures whether Available() returns true or false.
func (m *MockInterpreter) WithAvailable(available bool) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
	return m
}

// Interpret records the call and returns the configured result or error.
// Each call returns a fresh copy so callers may mutate it.
func (m *MockInterpreter) Interpret(ctx context.Context, prompt string) (*Interpretation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, prompt)

	if m.err != nil {
		return nil, m.err
	}

	if m.result != nil {
		out := *m.result
		out.Source.Maturity = copyFloat(m.result.Source.Maturity)
		out.Target.Maturity = copyFloat(m.result.Target.Maturity)
		return &out, nil
	}

	return &Interpretation{
		Source:      Pole{Name: "Source"},
		Target:      Pole{Name: "Target"},
		Relation:    Relation{Polarity: 0.5, LightShadow: "light", Description: prompt},
		Interpreter: "mock",
	}, nil
}

// Available returns the configured availability.
func (m *MockInterpreter) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// CallCount returns the number of Interpret calls.
func (m *MockInterpreter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
