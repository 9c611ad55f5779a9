// Package ollama provides a model.Model implementation for a local Ollama
// server using the official github.com/ollama/ollama/api client.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/hupe1980/agentpanel/model"
)

// DefaultBaseURL is the address of a locally running Ollama server.
const DefaultBaseURL = "http://localhost:11434"

// Options configures the Ollama model adapter.
type Options struct {
	Model       string
	Temperature float64
	BaseURL     string
	HTTPClient  *http.Client
}

// Model wraps the Ollama generate API behind the generic model.Model interface.
type Model struct {
	client *api.Client
	opts   Options
}

// NewModel creates an Ollama model for the configured base URL.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "llama3.1",
		Temperature: 0.7,
		BaseURL:     DefaultBaseURL,
		HTTPClient:  http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", opts.BaseURL, err)
	}
	return &Model{client: api.NewClient(base, opts.HTTPClient), opts: opts}, nil
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		name := m.opts.Model
		if req.Model != "" {
			name = req.Model
		}
		temperature := m.opts.Temperature
		if req.Temperature != nil {
			temperature = *req.Temperature
		}
		stream := req.Stream
		options := map[string]any{"temperature": temperature}
		if req.MaxTokens > 0 {
			options["num_predict"] = req.MaxTokens
		}

		var (
			text  strings.Builder
			final api.GenerateResponse
		)
		err := m.client.Generate(ctx, &api.GenerateRequest{
			Model:   name,
			Prompt:  req.Prompt,
			System:  req.Instructions,
			Stream:  &stream,
			Options: options,
		}, func(resp api.GenerateResponse) error {
			if resp.Response != "" {
				text.WriteString(resp.Response)
				if stream {
					out <- model.Response{Partial: true, Text: resp.Response}
				}
			}
			if resp.Done {
				final = resp
			}
			return nil
		})
		if err != nil {
			errCh <- fmt.Errorf("ollama api error: %w", err)
			return
		}

		reason := final.DoneReason
		if reason == "" {
			reason = "stop"
		}
		out <- model.Response{
			Text:         text.String(),
			FinishReason: reason,
			Usage: &model.TokenUsage{
				PromptTokens:     final.PromptEvalCount,
				CompletionTokens: final.EvalCount,
				TotalTokens:      final.PromptEvalCount + final.EvalCount,
			},
		}
	}()

	return out, errCh
}

// ListModels returns the models pulled into the local Ollama server.
func (m *Model) ListModels(ctx context.Context) ([]model.Descriptor, error) {
	resp, err := m.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama list models: %w", err)
	}
	out := make([]model.Descriptor, 0, len(resp.Models))
	for _, md := range resp.Models {
		id := md.Model
		if id == "" {
			id = md.Name
		}
		out = append(out, model.Descriptor{ID: id, Name: md.Name, Provider: "ollama"})
	}
	return out, nil
}

// Ping reports whether the Ollama server answers.
func (m *Model) Ping(ctx context.Context) error {
	return m.client.Heartbeat(ctx)
}

// Info returns metadata describing this Ollama model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "ollama"}
}
