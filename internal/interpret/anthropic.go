package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/nvandessel/tango/internal/logging"
)

const (
	anthropicAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion   = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-haiku-latest"
)

// AnthropicInterpreter implements Interpreter using the Anthropic Messages API.
type AnthropicInterpreter struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicInterpreter creates an AnthropicInterpreter.
// If config.APIKey is empty, it falls back to the ANTHROPIC_API_KEY environment variable.
// If config.Timeout is zero, it defaults to 30 seconds.
func NewAnthropicInterpreter(config ClientConfig) *AnthropicInterpreter {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	model := config.Model
	if model == "" {
		model = anthropicDefaultModel
	}

	endpoint := config.BaseURL
	if endpoint == "" {
		endpoint = anthropicAPIURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &AnthropicInterpreter{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.Discard(),
	}
}

// WithLogger sets the logger used for trace-level request logging.
func (c *AnthropicInterpreter) WithLogger(logger *slog.Logger) *AnthropicInterpreter {
	if logger != nil {
		c.logger = logger
	}
	return c
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Interpret sends the structured prompt and parses the JSON reply.
func (c *AnthropicInterpreter) Interpret(ctx context.Context, prompt string) (*Interpretation, error) {
	if !c.Available() {
		return nil, fmt.Errorf("anthropic interpreter not available: missing API key")
	}

	response, err := c.sendRequest(ctx, InterpretPrompt(prompt))
	if err != nil {
		return nil, fmt.Errorf("interpreting prompt: %w", err)
	}

	result, err := ParseInterpretation(response)
	if err != nil {
		return nil, fmt.Errorf("parsing interpretation: %w", err)
	}
	result.Interpreter = "anthropic"
	return result, nil
}

// Available returns true if the API key is present.
func (c *AnthropicInterpreter) Available() bool {
	return c.apiKey != ""
}

func (c *AnthropicInterpreter) sendRequest(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	c.logger.Log(ctx, logging.LevelTrace, "interpreter request", "provider", "anthropic", "model", c.model, "prompt", prompt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Log(ctx, logging.LevelTrace, "interpreter response", "provider", "anthropic", "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}
