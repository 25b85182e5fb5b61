package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zen-systems/switchboard/pkg/artifact"
)

const ollamaBaseURL = "http://localhost:11434"

// OllamaAdapter talks to a local Ollama daemon. No API key is needed.
type OllamaAdapter struct {
	baseURL    string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// NewOllamaAdapter creates an adapter for a local Ollama server.
func NewOllamaAdapter(opts ...Option) *OllamaAdapter {
	o := buildOptions(opts)
	a := &OllamaAdapter{
		baseURL:    ollamaBaseURL,
		httpClient: o.HTTPClient,
	}
	if o.BaseURL != "" {
		// Accept both http://host:11434 and http://host:11434/api.
		a.baseURL = strings.TrimSuffix(o.BaseURL, "/api")
	}
	if a.httpClient == nil {
		a.httpClient = defaultHTTPClient()
	}
	return a
}

// Name returns the adapter identifier.
func (a *OllamaAdapter) Name() string {
	return "ollama"
}

// Models returns commonly pulled local models.
func (a *OllamaAdapter) Models() []string {
	return []string{
		"llama3",
		"qwen2.5",
		"mistral",
	}
}

// Chat sends a non-streaming chat request to Ollama.
func (a *OllamaAdapter) Chat(ctx context.Context, req Request) (*Response, error) {
	payload := ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		payload.Options = map[string]any{}
		if req.Temperature != nil {
			payload.Options["temperature"] = *req.Temperature
		}
		if req.MaxTokens > 0 {
			payload.Options["num_predict"] = req.MaxTokens
		}
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Err: fmt.Errorf("ollama request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AdapterError{Adapter: a.Name(), Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(a.Name(), resp.StatusCode, body)
	}

	var oResp ollamaResponse
	if err := json.Unmarshal(body, &oResp); err != nil {
		return nil, malformed(a.Name(), "failed to parse response: %v", err)
	}
	if oResp.Error != "" {
		return nil, malformed(a.Name(), "%s", oResp.Error)
	}

	usage := Usage{
		PromptTokens:     oResp.PromptEvalCount,
		CompletionTokens: oResp.EvalCount,
	}.Normalize()

	return &Response{
		Artifact: artifact.New(oResp.Message.Content, a.Name(), req.Model),
		Usage:    &usage,
	}, nil
}
