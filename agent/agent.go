package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/model"
	"github.com/hupe1980/agentpanel/prompt"
)

// Turn carries the inputs of one agent call.
type Turn struct {
	Identity   core.AgentIdentity
	Question   string
	Transcript []core.Message
	Round      int
	FollowUp   *core.FollowUpContext
	Roster     []core.Participant
}

// Result is the outcome of a successful agent call.
type Result struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Capability is implemented by every backend taking part in discussions.
// Neither method retries; failures are reported as *core.BackendError.
type Capability interface {
	// ID returns the stable backend key.
	ID() string
	// Name returns the default display name.
	Name() string
	Generate(ctx context.Context, turn Turn) (Result, error)
	// GenerateStreaming reports text deltas to onFragment in backend emission
	// order before returning the aggregated result. Backends that do not
	// stream never call onFragment.
	GenerateStreaming(ctx context.Context, turn Turn, onFragment func(string)) (Result, error)
}

// Options configures an Agent.
type Options struct {
	// Name is the default display name used when a participant has none.
	Name string
	// Temperature is sent with every call.
	Temperature float64
	// Confidence is reported for batch results.
	Confidence float64
	// StreamingConfidence is reported for streaming results.
	StreamingConfidence float64
	// Instructions are sent as system instructions when non-empty.
	Instructions string
}

// Agent adapts a model.Model into a Capability.
type Agent struct {
	id   string
	llm  model.Model
	opts Options
}

// New creates an agent for the backend id.
func New(id string, llm model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Name:                id,
		Temperature:         0.7,
		Confidence:          0.8,
		StreamingConfidence: 0.8,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Agent{id: id, llm: llm, opts: opts}
}

// WithDefaults applies the known defaults of a backend id ("openai",
// "claude", "gemini", "ollama"). Unknown ids are left untouched.
func WithDefaults(id string) func(o *Options) {
	return func(o *Options) {
		switch id {
		case "openai":
			o.Name, o.Confidence, o.StreamingConfidence = "GPT-4o", 0.8, 0.8
		case "claude":
			o.Name, o.Confidence, o.StreamingConfidence = "Claude 3.5 Sonnet", 0.9, 0.85
		case "gemini":
			o.Name, o.Confidence, o.StreamingConfidence = "Gemini 2.0 Flash", 0.85, 0.75
		case "ollama":
			o.Name, o.Confidence, o.StreamingConfidence = "Ollama", 0.7, 0.7
		}
	}
}

// ID implements Capability.
func (a *Agent) ID() string { return a.id }

// Name implements Capability.
func (a *Agent) Name() string { return a.opts.Name }

// Model returns the wrapped model.
func (a *Agent) Model() model.Model { return a.llm }

// Generate implements Capability.
func (a *Agent) Generate(ctx context.Context, turn Turn) (Result, error) {
	return a.call(ctx, turn, false, nil)
}

// GenerateStreaming implements Capability.
func (a *Agent) GenerateStreaming(ctx context.Context, turn Turn, onFragment func(string)) (Result, error) {
	return a.call(ctx, turn, true, onFragment)
}

func (a *Agent) call(ctx context.Context, turn Turn, stream bool, onFragment func(string)) (Result, error) {
	text, err := prompt.Build(prompt.Input{
		Question:   turn.Question,
		Transcript: turn.Transcript,
		Self:       turn.Identity,
		Round:      turn.Round,
		FollowUp:   turn.FollowUp,
		Roster:     turn.Roster,
	})
	if err != nil {
		return Result{}, core.NewEngineError("build prompt", err)
	}

	temperature := a.opts.Temperature
	resp, err := model.Collect(ctx, a.llm, model.Request{
		Instructions: a.opts.Instructions,
		Prompt:       text,
		Model:        turn.Identity.Model,
		Temperature:  &temperature,
		Stream:       stream,
	}, onFragment)
	if err != nil {
		return Result{}, core.NewBackendError(a.id, turn.Identity.Model, err)
	}

	confidence := a.opts.Confidence
	if stream {
		confidence = a.opts.StreamingConfidence
	}
	return Result{
		Content:    resp.Text,
		Confidence: confidence,
		Reasoning:  reasoning(turn, stream),
	}, nil
}

func reasoning(turn Turn, stream bool) string {
	s := fmt.Sprintf("%s analysis - Round %d", turn.Identity.DisplayName, turn.Round)
	if turn.FollowUp != nil {
		s += " (Follow-up)"
	}
	if stream {
		s += " (Streaming)"
	}
	return s
}
