package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipant_Identity(t *testing.T) {
	p := Participant{ID: "openai", Name: "GPT-4o", Enabled: true, SelectedModel: "gpt-4o-mini"}
	assert.Equal(t, AgentIdentity{ID: "openai", DisplayName: "GPT-4o", Model: "gpt-4o-mini"}, p.Identity())

	anon := Participant{ID: "ollama"}
	assert.Equal(t, "ollama", anon.Identity().DisplayName)
}

func TestEnabledParticipants_PreservesOrder(t *testing.T) {
	roster := []Participant{
		{ID: "a", Enabled: true},
		{ID: "b", Enabled: false},
		{ID: "c", Enabled: true},
	}
	got := EnabledParticipants(roster)
	assert.Equal(t, []Participant{{ID: "a", Enabled: true}, {ID: "c", Enabled: true}}, got)
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestDiscussionState_NewAndClone(t *testing.T) {
	mod := &Participant{ID: "claude", SelectedModel: "claude-3-5-haiku-20241022"}
	d := NewDiscussionState("q", []Participant{{ID: "openai", Enabled: true}}, 2, mod)
	assert.Equal(t, StatusPending, d.Status)
	assert.NotEmpty(t, d.ID)
	assert.Empty(t, d.Answer())

	mod.ID = "changed"
	assert.Equal(t, "claude", d.Moderator.ID)

	answer := "done"
	d.FinalAnswer = &answer
	d.Messages = append(d.Messages, Message{ID: "m", Content: "x", Round: 1})

	c := d.Clone()
	c.Messages[0].Content = "y"
	c.Participants[0].ID = "z"
	*c.FinalAnswer = "other"
	assert.Equal(t, "x", d.Messages[0].Content)
	assert.Equal(t, "openai", d.Participants[0].ID)
	assert.Equal(t, "done", d.Answer())
}
