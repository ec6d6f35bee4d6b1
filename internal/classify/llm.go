package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatClient is a minimal prompt-in, text-out model client. Both the
// local endpoint and the cloud providers satisfy it, so processors can
// be exercised with fakes in tests.
type ChatClient interface {
	// Chat sends a single user prompt and returns the model's reply text.
	Chat(ctx context.Context, prompt string, maxTokens int) (string, error)

	// ModelName returns the model identifier for provenance tagging.
	ModelName() string
}

// defaultRequestTimeout bounds each model call when no timeout is
// configured. Calls must fail closed rather than hang.
const defaultRequestTimeout = 30 * time.Second

// --- Local (Ollama-compatible) client ---

// OllamaClient talks to an Ollama-compatible chat endpoint.
type OllamaClient struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaClient creates a client for the local model endpoint.
func NewOllamaClient(host, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &OllamaClient{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

// ModelName returns the configured local model identifier.
func (c *OllamaClient) ModelName() string {
	return c.model
}

type ollamaRequest struct {
	Model    string       `json:"model"`
	Messages []apiMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

// Chat sends the prompt to the local chat endpoint and returns the reply.
func (c *OllamaClient) Chat(
	ctx context.Context, prompt string, _ int,
) (string, error) {
	reqBody := ollamaRequest{
		Model: c.model,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
		Stream: false,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling local model: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"local model error (%d): %s", resp.StatusCode, string(respBody),
		)
	}

	var result ollamaResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return strings.TrimSpace(result.Message.Content), nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ValidateConnection checks that the endpoint is reachable and that the
// configured model is installed on it.
func (c *OllamaClient) ValidateConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.host+"/api/tags", nil,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling local model endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local model endpoint error (%d)", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decoding tags response: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == c.model || strings.HasPrefix(m.Name, c.model+":") {
			return nil
		}
	}
	return fmt.Errorf("model %q is not installed on %s", c.model, c.host)
}

// --- Cloud (OpenAI-compatible) client ---

// Provider describes an OpenAI-compatible chat completions endpoint.
type Provider struct {
	BaseURL      string
	DefaultModel string
}

// Providers is the table of supported cloud providers. All of them
// expose the OpenAI chat completions wire format.
var Providers = map[string]Provider{
	"openai":   {BaseURL: "https://api.openai.com/v1", DefaultModel: "gpt-4o-mini"},
	"deepseek": {BaseURL: "https://api.deepseek.com/v1", DefaultModel: "deepseek-chat"},
	"glm":      {BaseURL: "https://open.bigmodel.cn/api/paas/v4", DefaultModel: "glm-4-flash"},
	"qwen":     {BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", DefaultModel: "qwen-turbo"},
	"minimax":  {BaseURL: "https://api.minimax.chat/v1", DefaultModel: "abab6.5s-chat"},
	"moonshot": {BaseURL: "https://api.moonshot.cn/v1", DefaultModel: "moonshot-v1-8k"},
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// NewOpenAIClient creates a client for the named provider. Unknown
// providers fall back to the openai entry. An empty model uses the
// provider default.
func NewOpenAIClient(
	provider, model, apiKey string, timeout time.Duration,
) *OpenAIClient {
	p, ok := Providers[provider]
	if !ok {
		p = Providers["openai"]
	}
	if model == "" {
		model = p.DefaultModel
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &OpenAIClient{
		baseURL: p.BaseURL,
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// ModelName returns the configured cloud model identifier.
func (c *OpenAIClient) ModelName() string {
	return c.model
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message apiMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends the prompt to the chat completions endpoint.
func (c *OpenAIClient) Chat(
	ctx context.Context, prompt string, maxTokens int,
) (string, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat completions: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf(
				"API error (%d): %s", resp.StatusCode, apiErr.Error.Message,
			)
		}
		return "", fmt.Errorf(
			"API error (%d): %s", resp.StatusCode, string(respBody),
		)
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// ValidateConnection sends a minimal completion to verify the key and
// the endpoint.
func (c *OpenAIClient) ValidateConnection(ctx context.Context) error {
	if _, err := c.Chat(ctx, "Reply with OK.", 5); err != nil {
		return fmt.Errorf("validating %s: %w", c.model, err)
	}
	return nil
}
