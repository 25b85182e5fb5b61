package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zen-systems/switchboard/pkg/artifact"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	// Usage is attached to every successful reply when set.
	Usage *Usage
	// Delay is slept before every reply, honoring ctx.
	Delay time.Duration

	mu              sync.Mutex
	responses       map[string]string
	defaultResponse string
	errs            []error
	calls           int
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter keyed by the last user message.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	if responses == nil {
		responses = make(map[string]string)
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// NewFailingMockAdapter creates a mock whose every call fails with err.
func NewFailingMockAdapter(err error) *MockAdapter {
	m := NewMockAdapter()
	m.FailWith(err)
	return m
}

// FailWith queues errors returned by the next calls, in order.
// The last entry repeats; queue a trailing nil to recover.
func (a *MockAdapter) FailWith(errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, errs...)
}

// Calls reports how many times Chat was invoked.
func (a *MockAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Chat returns a deterministic reply for the last user message.
func (a *MockAdapter) Chat(ctx context.Context, req Request) (*Response, error) {
	a.mu.Lock()
	a.calls++
	var err error
	switch len(a.errs) {
	case 0:
	case 1:
		err = a.errs[0]
	default:
		err = a.errs[0]
		a.errs = a.errs[1:]
	}
	a.mu.Unlock()

	if a.Delay > 0 {
		timer := time.NewTimer(a.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = "mock-1"
	}

	prompt := lastUserMessage(req.Messages)
	a.mu.Lock()
	response, ok := a.responses[prompt]
	a.mu.Unlock()
	if !ok {
		response = fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
	}

	return &Response{Artifact: artifact.New(response, a.Name(), model), Usage: a.Usage}, nil
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
