package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/catalog"
	"github.com/zen-systems/switchboard/pkg/metrics"
	"github.com/zen-systems/switchboard/pkg/router"
)

type testBackend struct {
	id           string
	weight       int
	credentialed bool
	mock         *adapter.MockAdapter
}

func newTestServer(t *testing.T, backends []testBackend, ropts []router.Option, sopts ...Option) (*Server, http.Handler) {
	t.Helper()
	var descs []catalog.Descriptor
	for _, b := range backends {
		m := b.mock
		if m == nil {
			m = adapter.NewMockAdapter()
		}
		descs = append(descs, catalog.Descriptor{
			ID:           b.id,
			Adapter:      m,
			Model:        b.id + "-model",
			Weight:       b.weight,
			Credentialed: b.credentialed,
		})
	}
	cat, err := catalog.New(descs)
	require.NoError(t, err)
	s := New(router.New(cat, ropts...), sopts...)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func chatBody(text string) map[string]any {
	return map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestChatCompletion(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{"hello": "hi there"}, "")
	mock.Usage = &adapter.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}
	_, h := newTestServer(t, []testBackend{{id: "primary", weight: 50, credentialed: true, mock: mock}}, nil)

	rec := do(t, h, http.MethodPost, "/v1/chat/completions", chatBody("hello"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi there", resp.Choices[0].Message.Content)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "primary", resp.Routing.BackendUsed)
	assert.Equal(t, "primary-model", resp.Model)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.Routing.DecisionID)
	assert.Equal(t, resp.ID, resp.Routing.DecisionID)
}

func TestChatModelSelectsCatalogBackend(t *testing.T) {
	first := adapter.NewMockAdapterWithResponses(nil, "from first")
	second := adapter.NewMockAdapterWithResponses(nil, "from second")
	_, h := newTestServer(t, []testBackend{
		{id: "first", weight: 90, credentialed: true, mock: first},
		{id: "second", weight: 10, credentialed: true, mock: second},
	}, nil)

	body := chatBody("hello")
	body["model"] = "second"
	rec := do(t, h, http.MethodPost, "/v1/chat/completions", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, second.Calls())
	assert.Equal(t, 0, first.Calls())

	body["model"] = "gpt-4o"
	rec = do(t, h, http.MethodPost, "/v1/chat/completions", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, first.Calls())
}

func TestChatValidation(t *testing.T) {
	_, h := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: true}}, nil)

	tests := []struct {
		name string
		body any
	}{
		{name: "no messages", body: map[string]any{"messages": []any{}}},
		{name: "bad role", body: map[string]any{"messages": []map[string]string{{"role": "robot", "content": "x"}}}},
		{name: "temperature too high", body: map[string]any{
			"messages":    []map[string]string{{"role": "user", "content": "x"}},
			"temperature": 3.5,
		}},
		{name: "rule without backend", body: map[string]any{
			"messages": []map[string]string{{"role": "user", "content": "x"}},
			"rules":    []map[string]string{{"pattern": "x"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/chat/completions", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, "bad_request", resp.Error)
			assert.NotEmpty(t, resp.Details)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatErrorMapping(t *testing.T) {
	t.Run("unknown explicit backend", func(t *testing.T) {
		_, h := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: true}}, nil)
		body := chatBody("hello")
		body["backend"] = "ghost"
		rec := do(t, h, http.MethodPost, "/v1/chat/completions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no eligible backend", func(t *testing.T) {
		_, h := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: false}}, nil)
		rec := do(t, h, http.MethodPost, "/v1/chat/completions", chatBody("hello"))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "no_backend_available", decodeError(t, rec).Error)
	})

	t.Run("cascade exhausted", func(t *testing.T) {
		_, h := newTestServer(t, []testBackend{
			{id: "a", weight: 60, credentialed: true, mock: adapter.NewFailingMockAdapter(errors.New("boom a"))},
			{id: "b", weight: 40, credentialed: true, mock: adapter.NewFailingMockAdapter(errors.New("boom b"))},
		}, nil)
		rec := do(t, h, http.MethodPost, "/v1/chat/completions", chatBody("hello"))
		require.Equal(t, http.StatusBadGateway, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "bad_gateway", resp.Error)
		assert.EqualValues(t, 2, resp.Details["attempts"])
		assert.Equal(t, "b", resp.Details["last_backend"])
	})
}

func TestRouteDryRun(t *testing.T) {
	mock := adapter.NewMockAdapter()
	_, h := newTestServer(t, []testBackend{
		{id: "a", weight: 80, credentialed: true, mock: mock},
		{id: "b", weight: 20, credentialed: true},
	}, nil)

	rec := do(t, h, http.MethodPost, "/v1/route", chatBody("hello"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var d router.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, []string{"a", "b"}, d.Candidates)
	assert.Equal(t, 0, mock.Calls())
}

func TestFeedback(t *testing.T) {
	_, h := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: true}}, nil)

	rec := do(t, h, http.MethodPost, "/v1/feedback", map[string]any{"backend": "a", "success": false, "error": "timeout"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Backends map[string]struct {
			RequestCount int    `json:"request_count"`
			LastError    string `json:"last_error"`
		} `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Backends["a"].RequestCount)
	assert.Equal(t, "timeout", snap.Backends["a"].LastError)

	rec = do(t, h, http.MethodPost, "/v1/feedback", map[string]any{"backend": "ghost", "success": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/feedback", map[string]any{"backend": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/feedback", map[string]any{"success": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackByDecision(t *testing.T) {
	_, h := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: true}}, nil)

	rec := do(t, h, http.MethodPost, "/v1/chat/completions", chatBody("hello"))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	body := map[string]any{"decision_id": resp.Routing.DecisionID, "success": true}
	rec = do(t, h, http.MethodPost, "/v1/feedback", body)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/feedback", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackendsAndWeight(t *testing.T) {
	_, h := newTestServer(t, []testBackend{
		{id: "a", weight: 50, credentialed: true},
		{id: "b", weight: 30, credentialed: false},
	}, nil)

	rec := do(t, h, http.MethodGet, "/v1/backends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Backends []struct {
			ID       string `json:"id"`
			Adapter  string `json:"adapter"`
			Weight   int    `json:"weight"`
			State    string `json:"state"`
			Eligible bool   `json:"eligible"`
			Health   struct {
				SuccessRate float64 `json:"success_rate"`
			} `json:"health"`
		} `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Backends, 2)
	assert.Equal(t, "a", list.Backends[0].ID)
	assert.Equal(t, "mock", list.Backends[0].Adapter)
	assert.True(t, list.Backends[0].Eligible)
	assert.False(t, list.Backends[1].Eligible)
	assert.Equal(t, 100.0, list.Backends[0].Health.SuccessRate)

	rec = do(t, h, http.MethodPut, "/v1/backends/a/weight", map[string]any{"weight": 0})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/backends", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Backends[0].Weight)
	assert.Equal(t, "disabled_by_operator", list.Backends[0].State)

	rec = do(t, h, http.MethodPut, "/v1/backends/ghost/weight", map[string]any{"weight": 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/v1/backends/a/weight", map[string]any{"weight": 101})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/backends/a/reset", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodPost, "/v1/backends/ghost/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	_, h := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: true}}, nil,
		WithRateLimit(0.001, 1))

	rec := do(t, h, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health probes are not limited
	rec = do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	_, h := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: true}},
		[]router.Option{router.WithMetrics(m)}, WithGatherer(reg))

	rec := do(t, h, http.MethodPost, "/v1/chat/completions", chatBody("hello"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "switchboard_attempts_total")
}

func TestHealthzAndCache(t *testing.T) {
	_, h := newTestServer(t, []testBackend{
		{id: "a", weight: 50, credentialed: true},
		{id: "b", weight: 50, credentialed: false},
	}, nil)

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hz map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hz))
	assert.Equal(t, "ok", hz["status"])
	assert.EqualValues(t, 2, hz["backends"])
	assert.EqualValues(t, 1, hz["eligible"])

	rec = do(t, h, http.MethodGet, "/v1/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled":false`)

	rec = do(t, h, http.MethodDelete, "/v1/cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, []testBackend{{id: "a", weight: 50, credentialed: true}}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
