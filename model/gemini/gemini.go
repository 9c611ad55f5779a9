// Package gemini provides a model.Model implementation backed by the Google
// Gemini API through google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentpanel/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int32
	APIKey          string
	BaseURL         string
}

// Model wraps the Gemini generateContent API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.0-flash-exp",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// NewModel creates a Gemini model talking to the Gemini developer API.
// Without an explicit APIKey the client reads GOOGLE_API_KEY.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		name, contents, cfg := m.buildRequest(req)
		if req.Stream {
			m.handleStreaming(ctx, name, contents, cfg, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, name, contents, cfg)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}
		out <- model.Response{
			ID:           resp.ResponseID,
			Text:         resp.Text(),
			FinishReason: finishReason(resp),
			Usage:        usage(resp),
		}
	}()

	return out, errCh
}

func (m *Model) buildRequest(req model.Request) (string, []*genai.Content, *genai.GenerateContentConfig) {
	name := m.opts.Model
	if req.Model != "" {
		name = req.Model
	}
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := m.opts.MaxOutputTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: maxTokens,
	}
	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	return name, contents, cfg
}

func (m *Model) handleStreaming(
	ctx context.Context,
	name string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var (
		text   strings.Builder
		last   *genai.GenerateContentResponse
		reason = "stop"
	)
	for chunk, err := range m.client.Models.GenerateContentStream(ctx, name, contents, cfg) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}
		last = chunk
		if r := finishReason(chunk); r != "" {
			reason = r
		}
		delta := chunk.Text()
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		out <- model.Response{ID: chunk.ResponseID, Partial: true, Text: delta}
	}
	final := model.Response{Text: text.String(), FinishReason: reason}
	if last != nil {
		final.ID = last.ResponseID
		final.Usage = usage(last)
	}
	out <- final
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return strings.ToLower(string(resp.Candidates[0].FinishReason))
}

func usage(resp *genai.GenerateContentResponse) *model.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

// ListModels returns the Gemini models supporting content generation.
func (m *Model) ListModels(ctx context.Context) ([]model.Descriptor, error) {
	page, err := m.client.Models.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		return nil, fmt.Errorf("gemini list models: %w", err)
	}
	var out []model.Descriptor
	for _, md := range page.Items {
		if md == nil || !slices.Contains(md.SupportedActions, "generateContent") {
			continue
		}
		id := strings.TrimPrefix(md.Name, "models/")
		name := md.DisplayName
		if name == "" {
			name = id
		}
		out = append(out, model.Descriptor{ID: id, Name: name, Provider: "gemini"})
	}
	return out, nil
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}
