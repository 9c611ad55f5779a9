package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Request captures the normalized model input produced by agents and the
// moderator.
type Request struct {
	Instructions string   `json:"instructions,omitempty"` // System instructions
	Prompt       string   `json:"prompt"`                 // User prompt
	Model        string   `json:"model,omitempty"`        // Overrides the adapter's default model
	Temperature  *float64 `json:"temperature,omitempty"`  // Overrides the adapter's default temperature
	MaxTokens    int64    `json:"max_tokens,omitempty"`
	Stream       bool     `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry the text delta, the final chunk carries the complete text.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "ollama", ...
}

// Descriptor is a selectable model advertised by a backend catalog.
type Descriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface required by agents & the moderator to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Lister is implemented by backends that can enumerate their models.
type Lister interface {
	ListModels(ctx context.Context) ([]Descriptor, error)
}

// ErrEmptyResponse is returned by Collect when a model closes its stream
// without producing any text.
var ErrEmptyResponse = errors.New("model returned no response")

// Collect drains a Generate call. Partial text deltas are forwarded to
// onPartial (if non-nil) in emission order; the returned Response holds the
// aggregated final text.
func Collect(ctx context.Context, m Model, req Request, onPartial func(string)) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    Response
		hasFinal bool
		streamed strings.Builder
	)
	for r := range respCh {
		if r.Partial {
			if r.Text == "" {
				continue
			}
			streamed.WriteString(r.Text)
			if onPartial != nil {
				onPartial(r.Text)
			}
			continue
		}
		final = r
		hasFinal = true
	}
	if err := <-errCh; err != nil {
		return Response{}, err
	}
	if !hasFinal {
		final = Response{FinishReason: "stop"}
	}
	if final.Text == "" {
		final.Text = streamed.String()
	}
	if final.Text == "" {
		return Response{}, ErrEmptyResponse
	}
	return final, nil
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// Responses are looked up by exact prompt; unknown prompts get a generated
// reply. Every request is recorded.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	responder func(Request) (string, error)
	err       error
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetResponder installs a function computing the completion for any request.
// It takes precedence over canned responses.
func (m *MockModel) SetResponder(fn func(Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// SetError makes every subsequent call fail with err.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns the recorded requests in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) reply(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if m.responder != nil {
		return m.responder(req)
	}
	if full, ok := m.responses[req.Prompt]; ok {
		return full, nil
	}
	return fmt.Sprintf("Mock response to: %s", req.Prompt), nil
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if req.Prompt == "" {
			errCh <- fmt.Errorf("no prompt provided")
			return
		}
		full, err := m.reply(req)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		respCh <- Response{Text: full, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// ListModels implements Lister with the mock's own name.
func (m *MockModel) ListModels(context.Context) ([]Descriptor, error) {
	return []Descriptor{{ID: m.info.Name, Name: m.info.Name, Provider: m.info.Provider}}, nil
}
