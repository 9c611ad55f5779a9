package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpanel/model"
)

type listerModel struct {
	*model.MockModel
	list  []model.Descriptor
	err   error
	delay time.Duration
}

func (l *listerModel) ListModels(ctx context.Context) ([]model.Descriptor, error) {
	if l.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.delay):
		}
	}
	return l.list, l.err
}

func byID(ps []Provider) map[string]Provider {
	out := map[string]Provider{}
	for _, p := range ps {
		out[p.ID] = p
	}
	return out
}

func TestProviders_LiveAndFallback(t *testing.T) {
	reg := model.NewRegistry()
	reg.Register("openai", &listerModel{
		MockModel: model.NewMockModel("gpt-4o", "openai"),
		list:      []model.Descriptor{{ID: "gpt-4.1", Name: "gpt-4.1", Provider: "openai"}, {ID: "gpt-4o", Name: "gpt-4o", Provider: "openai"}},
	})
	reg.Register("claude", &listerModel{
		MockModel: model.NewMockModel("claude", "anthropic"),
		err:       errors.New("401"),
	})
	reg.Register("ollama", &listerModel{
		MockModel: model.NewMockModel("ollama", "ollama"),
		delay:     time.Second,
	})

	ps := New(reg, func(o *Options) { o.Timeout = 20 * time.Millisecond }).Providers(context.Background())
	require.Len(t, ps, 4)
	assert.Equal(t, []string{"openai", "gemini", "claude", "ollama"}, []string{ps[0].ID, ps[1].ID, ps[2].ID, ps[3].ID})

	got := byID(ps)
	assert.Equal(t, SourceLive, got["openai"].Source)
	assert.Len(t, got["openai"].Models, 2)
	assert.Equal(t, "gpt-4o", got["openai"].SelectedModel)

	assert.Equal(t, SourceStatic, got["claude"].Source)
	assert.True(t, got["claude"].Enabled)
	assert.Equal(t, "claude-3-5-sonnet-20241022", got["claude"].Models[0].ID)

	assert.Equal(t, SourceStatic, got["ollama"].Source, "timeout falls back")
	assert.Equal(t, []string{"llama3.1", "mistral"}, []string{got["ollama"].Models[0].ID, got["ollama"].Models[1].ID})

	assert.False(t, got["gemini"].Enabled)
	assert.Len(t, got["gemini"].Models, 3)
}

func TestProviders_SelectedModelFollowsLiveList(t *testing.T) {
	reg := model.NewRegistry()
	reg.Register("ollama", &listerModel{
		MockModel: model.NewMockModel("ollama", "ollama"),
		list:      []model.Descriptor{{ID: "qwen2.5", Name: "qwen2.5", Provider: "ollama"}},
	})
	got := byID(New(reg).Providers(context.Background()))
	assert.Equal(t, "qwen2.5", got["ollama"].SelectedModel)
}

func TestProviders_UnknownBackendListed(t *testing.T) {
	reg := model.NewRegistry()
	reg.Register("custom", model.NewMockModel("local-model", "custom"))

	ps := New(reg).Providers(context.Background())
	require.Len(t, ps, 5)
	assert.Equal(t, "custom", ps[4].ID)
	assert.Equal(t, SourceLive, ps[4].Source)
	assert.Equal(t, "local-model", ps[4].SelectedModel)
}

func TestLookup(t *testing.T) {
	k, ok := Lookup("gemini")
	require.True(t, ok)
	assert.Equal(t, "Google Gemini", k.Name)
	_, ok = Lookup("nope")
	assert.False(t, ok)
}
