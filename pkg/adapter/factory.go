package adapter

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Adapter kinds accepted by New.
const (
	KindAnthropic = "anthropic"
	KindOpenAI    = "openai"
	KindGoogle    = "google"
	KindDeepSeek  = "deepseek"
	KindOllama    = "ollama"
	KindMock      = "mock"
)

// Kinds lists every adapter kind New can build.
func Kinds() []string {
	return []string{KindAnthropic, KindOpenAI, KindGoogle, KindDeepSeek, KindOllama, KindMock}
}

// RequiresKey reports whether the adapter kind needs an API key.
func RequiresKey(kind string) bool {
	switch NormalizeKind(kind) {
	case KindOllama, KindMock:
		return false
	default:
		return true
	}
}

// New builds an adapter by kind. "gemini" is accepted as an alias for "google".
func New(kind, apiKey string, opts ...Option) (Adapter, error) {
	switch NormalizeKind(kind) {
	case KindAnthropic:
		return NewAnthropicAdapter(apiKey, opts...)
	case KindOpenAI:
		return NewOpenAIAdapter(apiKey, opts...)
	case KindGoogle:
		return NewGoogleAdapter(apiKey, opts...)
	case KindDeepSeek:
		return NewDeepSeekAdapter(apiKey, opts...)
	case KindOllama:
		return NewOllamaAdapter(opts...), nil
	case KindMock:
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", kind)
	}
}

// NormalizeKind lower-cases a kind and maps "gemini" to "google".
func NormalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "gemini" {
		return KindGoogle
	}
	return k
}

// defaultHTTPClient honors HTTP_PROXY / HTTPS_PROXY / NO_PROXY.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// ProxyHTTPClient returns the shared client configuration for SDK adapters.
func ProxyHTTPClient() *http.Client {
	return defaultHTTPClient()
}
