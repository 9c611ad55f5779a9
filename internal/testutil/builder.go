package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentpanel/core"
)

// DiscussionBuilder helps construct discussions with fluent chaining.
//
//	d := NewDiscussionBuilder("q").Message("GPT-4o", "hi", 1).Answer("42").Build()
type DiscussionBuilder struct {
	d *core.DiscussionState
}

// NewDiscussionBuilder creates a completed discussion for question.
func NewDiscussionBuilder(question string) *DiscussionBuilder {
	d := core.NewDiscussionState(question, nil, 3, nil)
	d.Status = core.StatusCompleted
	return &DiscussionBuilder{d: d}
}

// Message appends a transcript entry (chainable).
func (b *DiscussionBuilder) Message(agentName, content string, round int) *DiscussionBuilder {
	b.d.Messages = append(b.d.Messages, core.Message{
		ID:        fmt.Sprintf("%s-%d-%d", agentName, round, len(b.d.Messages)),
		AgentID:   agentName,
		AgentName: agentName,
		Content:   content,
		Timestamp: time.Now(),
		Round:     round,
	})
	if round > b.d.Round {
		b.d.Round = round
	}
	return b
}

// Answer sets the final answer (chainable).
func (b *DiscussionBuilder) Answer(a string) *DiscussionBuilder {
	b.d.FinalAnswer = &a
	return b
}

// Failed marks the discussion failed without an answer (chainable).
func (b *DiscussionBuilder) Failed(reason string) *DiscussionBuilder {
	b.d.Status = core.StatusFailed
	b.d.FinalAnswer = nil
	b.d.Error = reason
	return b
}

// Build returns the discussion.
func (b *DiscussionBuilder) Build() *core.DiscussionState { return b.d }

// Roster returns enabled participants for the given backend ids.
func Roster(ids ...string) []core.Participant {
	out := make([]core.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Participant{ID: id, Name: id, Enabled: true})
	}
	return out
}
