package adapter

import (
	"context"
	"net/http"
	"strings"
)

// Chat roles understood by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the vendor-neutral chat request handed to an adapter.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Chat sends the conversation to the model and returns the normalized reply.
	Chat(ctx context.Context, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of known models.
	Models() []string
}

// Options holds transport settings shared by the adapters.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures an adapter.
type Option func(*Options)

// WithBaseURL overrides the vendor endpoint.
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets the HTTP client used for vendor calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// splitSystem separates system turns, which several vendors carry outside the message list.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
