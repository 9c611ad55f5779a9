package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/model"
	"github.com/hupe1980/agentpanel/prompt"
)

var _ Capability = (*Agent)(nil)

func testTurn() Turn {
	return Turn{
		Identity: core.AgentIdentity{ID: "claude", DisplayName: "Claude", Model: "claude-3-5-haiku-20241022"},
		Question: "What is 2+2?",
		Round:    1,
	}
}

func TestAgent_Defaults(t *testing.T) {
	tests := []struct {
		id        string
		name      string
		batch     float64
		streaming float64
	}{
		{"openai", "GPT-4o", 0.8, 0.8},
		{"claude", "Claude 3.5 Sonnet", 0.9, 0.85},
		{"gemini", "Gemini 2.0 Flash", 0.85, 0.75},
		{"ollama", "Ollama", 0.7, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			a := New(tt.id, model.NewMockModel("m", tt.id), WithDefaults(tt.id))
			assert.Equal(t, tt.id, a.ID())
			assert.Equal(t, tt.name, a.Name())
			assert.Equal(t, tt.batch, a.opts.Confidence)
			assert.Equal(t, tt.streaming, a.opts.StreamingConfidence)
			assert.Equal(t, 0.7, a.opts.Temperature)
		})
	}
}

func TestAgent_Generate(t *testing.T) {
	llm := model.NewMockModel("claude-3-5-sonnet", "anthropic")
	llm.SetResponder(func(model.Request) (string, error) { return "4", nil })
	a := New("claude", llm, WithDefaults("claude"))

	res, err := a.Generate(context.Background(), testTurn())
	require.NoError(t, err)
	assert.Equal(t, "4", res.Content)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, "Claude analysis - Round 1", res.Reasoning)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "claude-3-5-haiku-20241022", reqs[0].Model)
	require.NotNil(t, reqs[0].Temperature)
	assert.Equal(t, 0.7, *reqs[0].Temperature)
	assert.False(t, reqs[0].Stream)
	assert.Contains(t, reqs[0].Prompt, prompt.NameMarker+" Claude")
}

func TestAgent_GenerateStreaming(t *testing.T) {
	llm := model.NewMockModel("gemini", "google")
	llm.SetResponder(func(model.Request) (string, error) { return "four", nil })
	a := New("gemini", llm, WithDefaults("gemini"))

	turn := testTurn()
	turn.FollowUp = &core.FollowUpContext{OriginalQuestion: "q0", PreviousAnswers: []string{"a0"}}

	var fragments []string
	res, err := a.GenerateStreaming(context.Background(), turn, func(s string) { fragments = append(fragments, s) })
	require.NoError(t, err)
	assert.Equal(t, "four", res.Content)
	assert.Equal(t, "four", strings.Join(fragments, ""))
	assert.Equal(t, 0.75, res.Confidence)
	assert.Equal(t, "Claude analysis - Round 1 (Follow-up) (Streaming)", res.Reasoning)
	assert.True(t, llm.Requests()[0].Stream)
}

func TestAgent_BackendFailure(t *testing.T) {
	llm := model.NewMockModel("gpt-4o", "openai")
	llm.SetError(errors.New("rate limited"))
	a := New("openai", llm)

	_, err := a.Generate(context.Background(), testTurn())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBackend)

	var be *core.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "openai", be.Backend)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAgent_EmptyResponseIsBackendError(t *testing.T) {
	llm := model.NewMockModel("llama3.1", "ollama")
	llm.SetResponder(func(model.Request) (string, error) { return "", nil })
	a := New("ollama", llm)

	_, err := a.Generate(context.Background(), testTurn())
	assert.ErrorIs(t, err, core.ErrBackend)
	assert.ErrorIs(t, err, model.ErrEmptyResponse)
}

func TestRegistry(t *testing.T) {
	models := model.NewRegistry()
	models.Register("openai", model.NewMockModel("gpt-4o", "openai"))
	models.Register("claude", model.NewMockModel("claude", "anthropic"))

	r := FromModels(models)
	c, ok := r.Get("claude")
	require.True(t, ok)
	assert.Equal(t, "Claude 3.5 Sonnet", c.Name())

	_, ok = r.Get("gemini")
	assert.False(t, ok)

	ids := []string{}
	for _, c := range r.List() {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []string{"openai", "claude"}, ids)

	r.Register(New("openai", model.NewMockModel("x", "openai"), func(o *Options) { o.Name = "Custom" }))
	c, _ = r.Get("openai")
	assert.Equal(t, "Custom", c.Name())
	assert.Len(t, r.List(), 2)
}
