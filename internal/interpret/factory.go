package interpret

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/tango/internal/config"
	"github.com/nvandessel/tango/internal/logging"
)

// NewFromConfig builds the interpreter selected by cfg. A disabled or empty
// provider yields the rules interpreter. With FallbackToRules the provider
// is wrapped so failures degrade to keyword rules instead of erroring.
func NewFromConfig(cfg config.InterpreterConfig, logger *slog.Logger) (Interpreter, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	rules := NewRulesInterpreter()
	if !cfg.Enabled || cfg.Provider == "" || cfg.Provider == "rules" {
		return rules, nil
	}

	client := ClientConfig{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout,
	}

	var primary Interpreter
	switch cfg.Provider {
	case "anthropic":
		primary = NewAnthropicInterpreter(client).WithLogger(logger)
	case "openai":
		primary = NewOpenAIInterpreter(client).WithLogger(logger)
	case "xai":
		primary = NewXAIInterpreter(client).WithLogger(logger)
	case "local":
		primary = NewLocalInterpreter(LocalConfig{
			LibPath:     cfg.LocalLibPath,
			ModelPath:   cfg.LocalModelPath,
			GPULayers:   cfg.LocalGPULayers,
			ContextSize: cfg.LocalContextSize,
		})
	default:
		return nil, fmt.Errorf("unknown interpreter provider: %s", cfg.Provider)
	}

	if !cfg.FallbackToRules {
		return primary, nil
	}
	return NewFallbackInterpreter(primary, rules, logger), nil
}
