package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/tango/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tango configuration",
		Long: `View and modify tango configuration settings.

Configuration is stored in ~/.tango/config.yaml (or the --config file).
Environment variables such as ANTHROPIC_API_KEY or TANGO_ITERATIONS
override the file when tango runs.

Examples:
  tango config list                                # Show all settings
  tango config get interpreter.provider            # Get a specific setting
  tango config set interpreter.provider anthropic  # Set a setting
  tango config set interpreter.api_key '${ANTHROPIC_API_KEY}'`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)
	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				// Redact the API key before it reaches any output.
				redacted := *cfg
				redacted.Interpreter.APIKey = cfg.Interpreter.RedactedAPIKey()
				return json.NewEncoder(out).Encode(redacted)
			}

			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-32s %v\n", key+":", displayValue(value))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, displayValue(value))
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			// Read the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", key, path)
			return nil
		},
	}
}

// configPath returns --config or ~/.tango/config.yaml.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"interpreter.provider",
	"interpreter.enabled",
	"interpreter.api_key",
	"interpreter.base_url",
	"interpreter.model",
	"interpreter.timeout",
	"interpreter.fallback_to_rules",
	"interpreter.local_model_path",
	"interpreter.local_lib_path",
	"interpreter.local_gpu_layers",
	"interpreter.local_context_size",
	"simulation.iterations",
	"server.addr",
	"server.allowed_origins",
	"server.rate_per_second",
	"server.burst",
	"logging.level",
}

// getConfigValue retrieves a configuration value by dot-notation key. The
// API key is always redacted.
func getConfigValue(cfg *config.TangoConfig, key string) (interface{}, bool) {
	switch key {
	case "interpreter.provider":
		return cfg.Interpreter.Provider, true
	case "interpreter.enabled":
		return cfg.Interpreter.Enabled, true
	case "interpreter.api_key":
		return cfg.Interpreter.RedactedAPIKey(), true
	case "interpreter.base_url":
		return cfg.Interpreter.BaseURL, true
	case "interpreter.model":
		return cfg.Interpreter.Model, true
	case "interpreter.timeout":
		return cfg.Interpreter.Timeout.String(), true
	case "interpreter.fallback_to_rules":
		return cfg.Interpreter.FallbackToRules, true
	case "interpreter.local_model_path":
		return cfg.Interpreter.LocalModelPath, true
	case "interpreter.local_lib_path":
		return cfg.Interpreter.LocalLibPath, true
	case "interpreter.local_gpu_layers":
		return cfg.Interpreter.LocalGPULayers, true
	case "interpreter.local_context_size":
		return cfg.Interpreter.LocalContextSize, true
	case "simulation.iterations":
		return cfg.Simulation.Iterations, true
	case "server.addr":
		return cfg.Server.Addr, true
	case "server.allowed_origins":
		return strings.Join(cfg.Server.AllowedOrigins, ","), true
	case "server.rate_per_second":
		return cfg.Server.RatePerSecond, true
	case "server.burst":
		return cfg.Server.Burst, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.TangoConfig, key, value string) error {
	switch key {
	case "interpreter.provider":
		cfg.Interpreter.Provider = value
	case "interpreter.enabled":
		cfg.Interpreter.Enabled = parseBool(value)
	case "interpreter.api_key":
		cfg.Interpreter.APIKey = value
	case "interpreter.base_url":
		cfg.Interpreter.BaseURL = value
	case "interpreter.model":
		cfg.Interpreter.Model = value
	case "interpreter.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Interpreter.Timeout = d
	case "interpreter.fallback_to_rules":
		cfg.Interpreter.FallbackToRules = parseBool(value)
	case "interpreter.local_model_path":
		cfg.Interpreter.LocalModelPath = value
	case "interpreter.local_lib_path":
		cfg.Interpreter.LocalLibPath = value
	case "interpreter.local_gpu_layers":
		return setInt(&cfg.Interpreter.LocalGPULayers, key, value)
	case "interpreter.local_context_size":
		return setInt(&cfg.Interpreter.LocalContextSize, key, value)
	case "simulation.iterations":
		return setInt(&cfg.Simulation.Iterations, key, value)
	case "server.addr":
		cfg.Server.Addr = value
	case "server.allowed_origins":
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	case "server.rate_per_second":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %s (must be a number)", key, value)
		}
		cfg.Server.RatePerSecond = f
	case "server.burst":
		return setInt(&cfg.Server.Burst, key, value)
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	*dst = n
	return nil
}

func parseBool(value string) bool {
	return value == "true" || value == "1"
}

// displayValue marks empty strings so they stand out in listings.
func displayValue(v interface{}) interface{} {
	if s, ok := v.(string); ok && s == "" {
		return "(not set)"
	}
	return v
}
