package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/agentpanel/agent"
)

// MockCapability is a testify mock implementing agent.Capability.
type MockCapability struct {
	mock.Mock
	id   string
	name string
}

// NewMockCapability creates a mock with fixed id and default name.
func NewMockCapability(id, name string) *MockCapability {
	return &MockCapability{id: id, name: name}
}

// ID implements agent.Capability.
func (m *MockCapability) ID() string { return m.id }

// Name implements agent.Capability.
func (m *MockCapability) Name() string { return m.name }

// Generate implements agent.Capability.
func (m *MockCapability) Generate(ctx context.Context, turn agent.Turn) (agent.Result, error) {
	args := m.Called(ctx, turn)
	return args.Get(0).(agent.Result), args.Error(1)
}

// GenerateStreaming implements agent.Capability. Fragments configured with
// the third return value are reported before returning.
func (m *MockCapability) GenerateStreaming(ctx context.Context, turn agent.Turn, onFragment func(string)) (agent.Result, error) {
	args := m.Called(ctx, turn, onFragment)
	if frags, ok := args.Get(2).([]string); ok && onFragment != nil {
		for _, f := range frags {
			onFragment(f)
		}
	}
	return args.Get(0).(agent.Result), args.Error(1)
}

// ScriptedCapability answers every turn through Reply and records the turns
// it saw. Streaming splits the reply into Fragments pieces.
type ScriptedCapability struct {
	CapID   string
	CapName string
	// Reply computes the content of a turn. A non-nil error fails the turn.
	Reply func(turn agent.Turn) (string, error)
	// Fragments is the number of streamed pieces; zero streams one fragment.
	Fragments int
	// Delay is waited before answering, honoring cancellation.
	Delay time.Duration

	mu    sync.Mutex
	turns []agent.Turn
}

// ID implements agent.Capability.
func (s *ScriptedCapability) ID() string { return s.CapID }

// Name implements agent.Capability.
func (s *ScriptedCapability) Name() string { return s.CapName }

// Turns returns the recorded turns in call order.
func (s *ScriptedCapability) Turns() []agent.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Turn(nil), s.turns...)
}

func (s *ScriptedCapability) answer(ctx context.Context, turn agent.Turn) (string, error) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	return s.Reply(turn)
}

// Generate implements agent.Capability.
func (s *ScriptedCapability) Generate(ctx context.Context, turn agent.Turn) (agent.Result, error) {
	text, err := s.answer(ctx, turn)
	if err != nil {
		return agent.Result{}, err
	}
	return agent.Result{Content: text, Confidence: 0.5, Reasoning: s.CapName}, nil
}

// GenerateStreaming implements agent.Capability.
func (s *ScriptedCapability) GenerateStreaming(ctx context.Context, turn agent.Turn, onFragment func(string)) (agent.Result, error) {
	text, err := s.answer(ctx, turn)
	if err != nil {
		return agent.Result{}, err
	}
	for _, f := range Split(text, s.Fragments) {
		onFragment(f)
	}
	return agent.Result{Content: text, Confidence: 0.5, Reasoning: s.CapName}, nil
}

// Split cuts text into n roughly equal rune pieces whose concatenation is
// text. n < 1 yields a single piece.
func Split(text string, n int) []string {
	runes := []rune(text)
	if n < 1 {
		n = 1
	}
	if n > len(runes) {
		n = len(runes)
	}
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	size := len(runes) / n
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
