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
	openAIEndpoint     = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-4o-mini"

	// xAI serves Grok behind an OpenAI-compatible endpoint.
	xaiEndpoint     = "https://api.x.ai/v1/chat/completions"
	xaiDefaultModel = "grok-4"
)

// OpenAIInterpreter implements Interpreter against any OpenAI-compatible
// chat completions endpoint, including xAI Grok.
type OpenAIInterpreter struct {
	name     string
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewOpenAIInterpreter creates an OpenAIInterpreter.
// If config.APIKey is empty, it falls back to the OPENAI_API_KEY environment variable.
// If config.Model is empty, it defaults to gpt-4o-mini.
func NewOpenAIInterpreter(config ClientConfig) *OpenAIInterpreter {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return newChatInterpreter("openai", apiKey, config, openAIEndpoint, openAIDefaultModel)
}

// NewXAIInterpreter creates an OpenAIInterpreter for xAI Grok.
// If config.APIKey is empty, it falls back to XAI_API_KEY, then API_KEY.
// If config.Model is empty, it defaults to grok-4.
func NewXAIInterpreter(config ClientConfig) *OpenAIInterpreter {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("XAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}
	return newChatInterpreter("xai", apiKey, config, xaiEndpoint, xaiDefaultModel)
}

func newChatInterpreter(name, apiKey string, config ClientConfig, defaultEndpoint, defaultModel string) *OpenAIInterpreter {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	endpoint := config.BaseURL
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &OpenAIInterpreter{
		name:     name,
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Discard(),
	}
}

// WithLogger sets the logger used for trace-level request logging.
func (c *OpenAIInterpreter) WithLogger(logger *slog.Logger) *OpenAIInterpreter {
	if logger != nil {
		c.logger = logger
	}
	return c
}

type openAIChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openAIChatMessage `json:"messages"`
	ResponseFormat *openAIFormat       `json:"response_format,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Interpret sends the structured prompt and parses the JSON reply.
func (c *OpenAIInterpreter) Interpret(ctx context.Context, prompt string) (*Interpretation, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%s interpreter not available: missing API key", c.name)
	}

	response, err := c.callAPI(ctx, InterpretPrompt(prompt))
	if err != nil {
		return nil, fmt.Errorf("interpreting prompt: %w", err)
	}

	result, err := ParseInterpretation(response)
	if err != nil {
		return nil, fmt.Errorf("parsing interpretation: %w", err)
	}
	result.Interpreter = c.name
	return result, nil
}

// Available returns true if the API key is present.
func (c *OpenAIInterpreter) Available() bool {
	return c.apiKey != ""
}

func (c *OpenAIInterpreter) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIChatRequest{
		Model:          c.model,
		Messages:       []openAIChatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &openAIFormat{Type: "json_object"},
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Log(ctx, logging.LevelTrace, "interpreter request", "provider", c.name, "model", c.model, "prompt", prompt)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Log(ctx, logging.LevelTrace, "interpreter response", "provider", c.name, "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in API response")
	}
	return chatResp.Choices[0].Message.Content, nil
}
