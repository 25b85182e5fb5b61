package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/zen-systems/switchboard/pkg/artifact"
)

const anthropicDefaultMaxTokens = 1024

// AnthropicAdapter implements the Adapter interface for Claude models.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(apiKey string, opts ...Option) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	o := buildOptions(opts)
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.BaseURL != "" {
		// The SDK appends the version segment itself.
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSuffix(o.BaseURL, "/v1")+"/"))
	}
	if o.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.HTTPClient))
	}

	return &AnthropicAdapter{client: anthropic.NewClient(reqOpts...)}, nil
}

// Name returns the adapter identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Models returns the list of known Claude models.
func (a *AnthropicAdapter) Models() []string {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
		"claude-3-5-haiku-latest",
	}
}

// Chat sends the conversation to Claude. System turns become the system prompt.
func (a *AnthropicAdapter) Chat(ctx context.Context, req Request) (*Response, error) {
	system, turns := splitSystem(req.Messages)

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}

	maxTokens := int64(anthropicDefaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapAnthropicError(err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, malformed(a.Name(), "no text content blocks")
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}.Normalize()

	return &Response{
		Artifact: artifact.New(content.String(), a.Name(), req.Model),
		Usage:    &usage,
	}, nil
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &AdapterError{
			Adapter: "anthropic",
			Status:  apiErr.StatusCode,
			Err:     fmt.Errorf("anthropic API error: %w", err),
		}
	}
	return &AdapterError{Adapter: "anthropic", Err: fmt.Errorf("anthropic API error: %w", err)}
}
