package interpret

import (
	"context"
	"testing"

	"github.com/nvandessel/tango/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.InterpreterConfig
		check   func(Interpreter) bool
		wantErr bool
	}{
		{
			name:  "disabled uses rules",
			cfg:   config.InterpreterConfig{Provider: "anthropic", Enabled: false},
			check: func(i Interpreter) bool { _, ok := i.(*RulesInterpreter); return ok },
		},
		{
			name:  "explicit rules",
			cfg:   config.InterpreterConfig{Provider: "rules", Enabled: true},
			check: func(i Interpreter) bool { _, ok := i.(*RulesInterpreter); return ok },
		},
		{
			name:  "anthropic with fallback",
			cfg:   config.InterpreterConfig{Provider: "anthropic", Enabled: true, FallbackToRules: true},
			check: func(i Interpreter) bool { _, ok := i.(*FallbackInterpreter); return ok },
		},
		{
			name:  "openai without fallback",
			cfg:   config.InterpreterConfig{Provider: "openai", Enabled: true},
			check: func(i Interpreter) bool { c, ok := i.(*OpenAIInterpreter); return ok && c.name == "openai" },
		},
		{
			name:  "xai without fallback",
			cfg:   config.InterpreterConfig{Provider: "xai", Enabled: true},
			check: func(i Interpreter) bool { c, ok := i.(*OpenAIInterpreter); return ok && c.name == "xai" },
		},
		{
			name:  "local",
			cfg:   config.InterpreterConfig{Provider: "local", Enabled: true},
			check: func(i Interpreter) bool { _, ok := i.(*EmbeddingInterpreter); return ok },
		},
		{
			name:    "unknown provider",
			cfg:     config.InterpreterConfig{Provider: "oracle", Enabled: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFromConfig(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !tt.check(got) {
				t.Errorf("NewFromConfig() returned %T", got)
			}
		})
	}
}

func TestNewFromConfig_FallsBackWithoutKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	interp, err := NewFromConfig(config.InterpreterConfig{Provider: "anthropic", Enabled: true, FallbackToRules: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	in, err := interp.Interpret(context.Background(), "My boss criticizes me")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if in.Interpreter != "rules" {
		t.Errorf("interpreter = %q, want rules", in.Interpreter)
	}
}
