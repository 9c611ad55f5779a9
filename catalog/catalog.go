// Package catalog lists the models each backend offers. Live listings are
// fetched concurrently; any backend that fails, times out or is not
// configured falls back to a static list.
package catalog

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentpanel/logging"
	"github.com/hupe1980/agentpanel/model"
)

// Source tells where a provider's model list came from.
type Source string

const (
	SourceLive   Source = "live"
	SourceStatic Source = "static"
)

// Provider is one backend entry of the catalog.
type Provider struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Enabled       bool               `json:"enabled"`
	Models        []model.Descriptor `json:"models"`
	SelectedModel string             `json:"selectedModel"`
	Source        Source             `json:"source"`
}

// Known describes a backend the catalog always reports.
type Known struct {
	ID           string
	Name         string
	DefaultModel string
	Fallback     []model.Descriptor
}

// KnownProviders are reported in this order, registered or not.
var KnownProviders = []Known{
	{
		ID: "openai", Name: "OpenAI", DefaultModel: "gpt-4o",
		Fallback: []model.Descriptor{
			{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai"},
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai"},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: "openai"},
		},
	},
	{
		ID: "gemini", Name: "Google Gemini", DefaultModel: "gemini-2.0-flash-exp",
		Fallback: []model.Descriptor{
			{ID: "gemini-2.0-flash-exp", Name: "Gemini 2.0 Flash (Experimental)", Provider: "gemini"},
			{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "gemini"},
			{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: "gemini"},
		},
	},
	{
		ID: "claude", Name: "Anthropic Claude", DefaultModel: "claude-3-5-sonnet-20241022",
		Fallback: []model.Descriptor{
			{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "claude"},
			{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: "claude"},
			{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: "claude"},
		},
	},
	{
		ID: "ollama", Name: "Ollama (Local)", DefaultModel: "llama3.1",
		Fallback: []model.Descriptor{
			{ID: "llama3.1", Name: "Llama 3.1", Provider: "ollama"},
			{ID: "mistral", Name: "Mistral", Provider: "ollama"},
		},
	},
}

// Options configures a Catalog.
type Options struct {
	// Timeout bounds each backend listing. Defaults to 5s.
	Timeout time.Duration
	Logger  logging.Logger
}

// Catalog aggregates model listings of registered backends.
type Catalog struct {
	models *model.Registry
	opts   Options
}

// New creates a catalog over the models in reg.
func New(reg *model.Registry, optFns ...func(o *Options)) *Catalog {
	opts := Options{Timeout: 5 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Catalog{models: reg, opts: opts}
}

// Providers returns every known backend followed by any other registered
// one. It never fails; see Source for how each list was obtained.
func (c *Catalog) Providers(ctx context.Context) []Provider {
	entries := append([]Known(nil), KnownProviders...)
	for _, id := range c.models.IDs() {
		if _, ok := lookup(id); !ok {
			entries = append(entries, Known{ID: id, Name: id})
		}
	}

	out := make([]Provider, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range entries {
		g.Go(func() error {
			out[i] = c.provider(gctx, k)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Catalog) provider(ctx context.Context, k Known) Provider {
	p := Provider{
		ID:            k.ID,
		Name:          k.Name,
		Models:        k.Fallback,
		SelectedModel: k.DefaultModel,
		Source:        SourceStatic,
	}
	if p.Models == nil {
		p.Models = []model.Descriptor{}
	}

	m, ok := c.models.Get(k.ID)
	if !ok {
		return p
	}
	p.Enabled = true

	lister, ok := m.(model.Lister)
	if !ok {
		return p
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil || len(models) == 0 {
		c.opts.Logger.Warn("model listing failed, using fallback", "provider", k.ID, "error", err)
		return p
	}

	p.Models = models
	p.Source = SourceLive
	if !contains(models, p.SelectedModel) {
		p.SelectedModel = models[0].ID
	}
	return p
}

// Lookup returns the known entry for id.
func Lookup(id string) (Known, bool) { return lookup(id) }

func lookup(id string) (Known, bool) {
	for _, k := range KnownProviders {
		if k.ID == id {
			return k, true
		}
	}
	return Known{}, false
}

func contains(models []model.Descriptor, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}
