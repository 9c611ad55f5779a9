package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpanel/model"
)

var (
	_ model.Model  = (*Model)(nil)
	_ model.Lister = (*Model)(nil)
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m, err := NewModel(func(o *Options) { o.BaseURL = srv.URL })
	require.NoError(t, err)
	return m
}

func TestModel_GenerateNonStreaming(t *testing.T) {
	var got map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"mistral","response":"Ciao","done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":2}`)
	})

	temp := 0.3
	resp, err := model.Collect(context.Background(), m, model.Request{Prompt: "hi", Model: "mistral", Temperature: &temp}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ciao", resp.Text)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
	assert.Equal(t, "mistral", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.InDelta(t, 0.3, got["options"].(map[string]any)["temperature"], 1e-9)
}

func TestModel_GenerateStreaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3.1","response":"Hel","done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.1","response":"lo","done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.1","response":"","done":true,"done_reason":"stop"}`)
	})

	var fragments []string
	resp, err := model.Collect(context.Background(), m, model.Request{Prompt: "hi", Stream: true}, func(s string) {
		fragments = append(fragments, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, fragments)
	assert.Equal(t, "Hello", resp.Text)
}

func TestModel_GenerateServerError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found"}`)
	})
	_, err := model.Collect(context.Background(), m, model.Request{Prompt: "hi", Model: "nope"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama api error")
}

func TestModel_ListModels(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:latest","model":"llama3.1:latest"},{"name":"mistral:7b","model":"mistral:7b"}]}`)
	})
	got, err := m.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "llama3.1:latest", got[0].ID)
	assert.Equal(t, "ollama", got[1].Provider)
}

func TestNewModel_InvalidBaseURL(t *testing.T) {
	_, err := NewModel(func(o *Options) { o.BaseURL = "://bad" })
	assert.Error(t, err)
}
