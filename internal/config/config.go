// Package config provides unified configuration loading for tango.
// Values come from built-in defaults, then a YAML file, then environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TangoConfig contains all tango configuration settings.
type TangoConfig struct {
	// Interpreter configures the prompt-to-graph interpreter.
	Interpreter InterpreterConfig `json:"interpreter" yaml:"interpreter"`

	// Simulation configures the interaction engine runs.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Server configures the HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging configures operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// InterpreterConfig selects and configures the service that turns a
// free-text statement into two poles and a relationship.
type InterpreterConfig struct {
	// Provider is "anthropic", "openai", "xai", "local", "rules", or "" for
	// rules-only interpretation.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey supports ${VAR} syntax. Not used by local or rules.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the provider model identifier.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Timeout bounds a single interpreter call.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Enabled turns the configured provider on. When false the rules
	// interpreter is used.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// FallbackToRules retries with the rules interpreter when the provider
	// fails or is unavailable.
	FallbackToRules bool `json:"fallback_to_rules" yaml:"fallback_to_rules"`

	// LocalModelPath is a GGUF embedding model for the local provider.
	// Requires building with -tags llamacpp.
	LocalModelPath string `json:"local_model_path,omitempty" yaml:"local_model_path,omitempty"`

	// LocalLibPath is the directory holding the llama.cpp shared libraries.
	// Falls back to YZMA_LIB.
	LocalLibPath string `json:"local_lib_path,omitempty" yaml:"local_lib_path,omitempty"`

	// LocalGPULayers is the number of layers offloaded to GPU (0 = CPU only).
	LocalGPULayers int `json:"local_gpu_layers,omitempty" yaml:"local_gpu_layers,omitempty"`

	// LocalContextSize is the context window in tokens. Defaults to 512.
	LocalContextSize int `json:"local_context_size,omitempty" yaml:"local_context_size,omitempty"`
}

// RedactedAPIKey returns the API key with most characters masked.
func (c InterpreterConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer without leaking the API key.
func (c InterpreterConfig) String() string {
	return fmt.Sprintf("InterpreterConfig{Provider:%s, Enabled:%t, APIKey:%s, Model:%s}",
		c.Provider, c.Enabled, c.RedactedAPIKey(), c.Model)
}

// SimulationConfig configures engine runs.
type SimulationConfig struct {
	// Iterations is the number of passes per request. Default: 5.
	Iterations int `json:"iterations" yaml:"iterations"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Default: localhost:5000.
	Addr string `json:"addr" yaml:"addr"`

	// AllowedOrigins lists CORS origins. Default: all.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// RatePerSecond and Burst throttle calls that reach the interpreter.
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `json:"burst" yaml:"burst"`
}

// LoggingConfig configures tango's logging.
type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace". "debug" enables the
	// decision trace in .tango/decisions.jsonl; "trace" also logs raw
	// interpreter prompts and responses.
	Level string `json:"level" yaml:"level"`
}

// Default returns a TangoConfig with sensible defaults.
func Default() *TangoConfig {
	return &TangoConfig{
		Interpreter: InterpreterConfig{
			Provider:        "",
			Timeout:         30 * time.Second,
			Enabled:         false,
			FallbackToRules: true,
		},
		Simulation: SimulationConfig{
			Iterations: 5,
		},
		Server: ServerConfig{
			Addr:           "localhost:5000",
			AllowedOrigins: []string{"*"},
			RatePerSecond:  1,
			Burst:          5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.tango/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".tango", "config.yaml"), nil
}

// Load loads configuration from the default location and the environment.
// Order: defaults -> ~/.tango/config.yaml -> environment variables.
func Load() (*TangoConfig, error) {
	config := Default()

	if path, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults. Environment overrides are not applied.
func LoadFromFile(path string) (*TangoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Interpreter.APIKey = expandEnvVars(config.Interpreter.APIKey)
	return config, nil
}

// LoadPath loads path (when non-empty) or the default location, then applies
// environment overrides.
func LoadPath(path string) (*TangoConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// Save writes the configuration as YAML.
func (c *TangoConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *TangoConfig) Validate() error {
	validProviders := map[string]bool{"": true, "anthropic": true, "openai": true, "xai": true, "local": true, "rules": true}
	if !validProviders[c.Interpreter.Provider] {
		return fmt.Errorf("invalid provider: %s (valid: anthropic, openai, xai, local, rules, or empty)", c.Interpreter.Provider)
	}

	if c.Interpreter.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Interpreter.Timeout)
	}

	if c.Simulation.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", c.Simulation.Iterations)
	}

	if c.Server.RatePerSecond < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("rate_per_second and burst must be non-negative")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *TangoConfig) {
	if v := os.Getenv("TANGO_INTERPRETER_PROVIDER"); v != "" {
		config.Interpreter.Provider = v
	}

	if v := os.Getenv("TANGO_INTERPRETER_ENABLED"); v != "" {
		config.Interpreter.Enabled = v == "true" || v == "1"
	}

	switch config.Interpreter.Provider {
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			config.Interpreter.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			config.Interpreter.APIKey = v
		}
	case "xai":
		// API_KEY is the variable older deployments used for Grok.
		if v := os.Getenv("XAI_API_KEY"); v != "" {
			config.Interpreter.APIKey = v
		} else if v := os.Getenv("API_KEY"); v != "" && config.Interpreter.APIKey == "" {
			config.Interpreter.APIKey = v
		}
	}

	if v := os.Getenv("TANGO_LOCAL_MODEL_PATH"); v != "" {
		config.Interpreter.LocalModelPath = v
	}
	if v := os.Getenv("TANGO_LOCAL_GPU_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Interpreter.LocalGPULayers = n
		}
	}

	if v := os.Getenv("TANGO_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Iterations = n
		}
	}

	if v := os.Getenv("TANGO_SERVER_ADDR"); v != "" {
		config.Server.Addr = v
	}

	if v := os.Getenv("TANGO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns with environment values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
