package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpanel"
	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/internal/metrics"
	"github.com/hupe1980/agentpanel/model"
)

func newTestServer(t *testing.T, optFns ...func(o *Options)) *Server {
	t.Helper()
	reg := model.NewRegistry()
	reg.Register("openai", model.NewMockModel("gpt-4o", "openai"))
	reg.Register("claude", model.NewMockModel("claude-3-5-sonnet-20241022", "anthropic"))
	panel := agentpanel.New(reg, func(o *agentpanel.Options) {
		o.EngineConfig.StreamInterval = 0
	})
	return New(panel, optFns...)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const discussBody = `{
	"question": "Is Go fast?",
	"providers": [{"id":"openai","name":"GPT-4o","enabled":true},{"id":"claude","name":"Claude","enabled":true}],
	"maxRounds": 1
}`

func TestDiscuss(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/discuss", discussBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.NotEmpty(t, body["conversationId"])
	assert.NotEmpty(t, body["finalAnswer"])
	assert.Len(t, body["messages"], 2)
}

func TestDiscuss_WebClientFieldNames(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/discuss", `{
		"question": "q",
		"selectedProviders": [{"id":"claude","name":"Claude","enabled":true}],
		"moderatorProvider": {"id":"claude","name":"Claude","enabled":true,"selectedModel":"claude-3-5-haiku-20241022"},
		"maxRounds": 1
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "completed", body["status"])
	mod, ok := body["moderator"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "claude", mod["id"])
}

func TestDiscuss_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "malformed", body: `{"question":`, code: http.StatusBadRequest},
		{name: "missing question", body: `{"providers":[{"id":"openai","enabled":true}]}`, code: http.StatusBadRequest},
		{name: "no providers", body: `{"question":"q"}`, code: http.StatusBadRequest},
		{name: "unknown provider", body: `{"question":"q","providers":[{"id":"mistral","enabled":true}]}`, code: http.StatusBadRequest},
		{name: "unknown conversation", body: `{"question":"q","providers":[{"id":"openai","enabled":true}],"conversationId":"nope"}`, code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := do(t, s, http.MethodPost, "/api/discuss", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestListParticipants(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/discuss", "")
	require.Equal(t, http.StatusOK, rec.Code)
	providers, ok := decode(t, rec)["providers"].([]any)
	require.True(t, ok)
	require.Len(t, providers, 2)
	assert.Equal(t, "openai", providers[0].(map[string]any)["id"])
}

func readSSE(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var events []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestDiscussStream(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/discuss/stream", discussBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	events := readSSE(t, rec.Body.Bytes())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, "complete", last["type"])
	convID, _ := last["conversationId"].(string)
	assert.NotEmpty(t, convID)

	var finals, messages int
	for _, ev := range events[:len(events)-1] {
		switch ev["type"] {
		case "finalAnswer":
			finals++
			assert.NotEmpty(t, ev["finalAnswer"])
		case "message":
			if ev["partial"] != true {
				messages++
			}
		case "complete":
			t.Fatal("complete must be the last event")
		}
	}
	assert.Equal(t, 1, finals)
	assert.Equal(t, 2, messages)

	rec = do(t, s, http.MethodGet, "/api/conversations/"+convID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDiscussStream_ClientDisconnectCompletesDiscussion(t *testing.T) {
	reg := model.NewRegistry()
	slow := model.NewMockModel("gpt-4o", "openai")
	slow.SetResponder(func(model.Request) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "answer", nil
	})
	reg.Register("openai", slow)
	panel := agentpanel.New(reg, func(o *agentpanel.Options) {
		o.EngineConfig.StreamInterval = 0
	})
	ts := httptest.NewServer(New(panel).Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	body := `{"question":"q","providers":[{"id":"openai","name":"GPT-4o","enabled":true}],"maxRounds":3}`
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/discuss/stream", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	cancel()
	_ = resp.Body.Close()

	var stored *core.DiscussionState
	require.Eventually(t, func() bool {
		list, err := panel.Store().List(context.Background())
		if err != nil || len(list) != 1 || list[0].DiscussionCount != 1 {
			return false
		}
		conv, err := panel.Store().Get(context.Background(), list[0].ID)
		if err != nil {
			return false
		}
		stored = conv.Discussions[0]
		return true
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, core.StatusCompleted, stored.Status)
	assert.Empty(t, stored.Error)
	assert.Len(t, stored.Messages, 3)
	assert.NotNil(t, stored.FinalAnswer)
}

func TestDiscussStream_ValidationIsPlainJSON(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/discuss/stream", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestToSSE_ErrorCarriesText(t *testing.T) {
	ev := toSSE(core.NewErrorEvent(assert.AnError))
	assert.Equal(t, core.EventError, ev.Type)
	assert.Equal(t, assert.AnError.Error(), ev.Message)
}

func TestConversations(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/conversations", `{"firstQuestion":"Why is the sky blue?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	conv := decode(t, rec)["conversation"].(map[string]any)
	id := conv["id"].(string)
	assert.Equal(t, "Why is the sky blue?", conv["title"])

	rec = do(t, s, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["conversations"], 1)

	rec = do(t, s, http.MethodGet, "/api/conversations/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/conversations/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = do(t, s, http.MethodDelete, "/api/conversations/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/conversations/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/conversations", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportImport(t *testing.T) {
	src := newTestServer(t)
	rec := do(t, src, http.MethodPost, "/api/discuss", discussBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, src, http.MethodGet, "/api/conversations/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dump := rec.Body.String()

	dst := newTestServer(t)
	rec = do(t, dst, http.MethodPost, "/api/conversations/import", dump)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, decode(t, rec)["imported"])

	rec = do(t, dst, http.MethodGet, "/api/conversations", "")
	assert.Len(t, decode(t, rec)["conversations"], 1)

	rec = do(t, dst, http.MethodPost, "/api/conversations/import", `{"version":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModels(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, rec.Code)

	providers := decode(t, rec)["providers"].([]any)
	require.Len(t, providers, 4)
	byID := map[string]map[string]any{}
	for _, p := range providers {
		m := p.(map[string]any)
		byID[m["id"].(string)] = m
	}
	assert.Equal(t, true, byID["openai"]["enabled"])
	assert.Equal(t, false, byID["gemini"]["enabled"])
	assert.Equal(t, "static", byID["gemini"]["source"])
}

func TestHealth(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestServer(t, func(o *Options) {
		o.Services = map[string]bool{"openai": true, "gemini": false, "claude": false, "ollama": false}
		o.Clock = func() time.Time { return now }
	})
	rec := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 3.0, body["maxRounds"])
	assert.Equal(t, "2025-01-02T03:04:05Z", body["timestamp"])

	s = newTestServer(t, func(o *Options) { o.Services = map[string]bool{"openai": false} })
	rec = do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestServer(t, func(o *Options) {
		o.Metrics = metrics.NewCollector(metrics.DefaultNamespace, reg)
		o.Gatherer = reg
	})

	do(t, s, http.MethodGet, "/api/conversations/abc", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `agentpanel_http_requests_total{method="GET",route="/api/conversations/{id}",status="404"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/discuss", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
