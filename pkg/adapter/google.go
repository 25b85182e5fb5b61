package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zen-systems/switchboard/pkg/artifact"
	"google.golang.org/genai"
)

// GoogleAdapter implements the Adapter interface for Gemini models.
type GoogleAdapter struct {
	client *genai.Client
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(apiKey string, opts ...Option) (*GoogleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	o := buildOptions(opts)
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.HTTPClient,
	}
	if o.BaseURL != "" {
		base := strings.TrimSuffix(strings.TrimSuffix(o.BaseURL, "/v1beta"), "/v1")
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base + "/"}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAdapter{
		client: client,
	}, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Models returns the list of known Gemini models.
func (a *GoogleAdapter) Models() []string {
	return []string{
		"gemini-2.0-flash",
		"gemini-1.5-pro",
	}
}

// Chat sends the conversation to Gemini.
func (a *GoogleAdapter) Chat(ctx context.Context, req Request) (*Response, error) {
	system, turns := splitSystem(req.Messages)

	contents := toGenaiContents(turns)

	var cfg *genai.GenerateContentConfig
	if system != "" || req.Temperature != nil {
		cfg = &genai.GenerateContentConfig{}
		if system != "" {
			cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}
		if req.Temperature != nil {
			cfg.Temperature = genai.Ptr(float32(*req.Temperature))
		}
	}

	resp, err := a.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, wrapGoogleError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, malformed(a.Name(), "no candidates")
	}

	var content strings.Builder
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				content.WriteString(part.Text)
			}
		}
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}.Normalize()
	}

	return &Response{
		Artifact: artifact.New(content.String(), a.Name(), req.Model),
		Usage:    &usage,
	}, nil
}

// toGenaiContents converts non-system turns. Assistant turns map to the "model" role.
func toGenaiContents(turns []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func wrapGoogleError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &AdapterError{
			Adapter: "google",
			Status:  apiErr.Code,
			Err:     fmt.Errorf("google API error: %w", err),
		}
	}
	return &AdapterError{Adapter: "google", Err: fmt.Errorf("google API error: %w", err)}
}
