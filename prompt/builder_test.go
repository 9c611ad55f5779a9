package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpanel/core"
)

var self = core.AgentIdentity{ID: "openai", DisplayName: "GPT-4o", Model: "gpt-4o"}

func build(t *testing.T, in Input) string {
	t.Helper()
	out, err := Build(in)
	require.NoError(t, err)
	return out
}

func TestBuild_FirstTurnHasNoHistory(t *testing.T) {
	out := build(t, Input{Question: "Is Go fast?", Self: self, Round: 1})

	assert.Contains(t, out, NameMarker+" GPT-4o")
	assert.Contains(t, out, OriginalMarker+" Is Go fast?")
	assert.NotContains(t, out, HistoryMarker)
	assert.NotContains(t, out, ContextStartMarker)
	assert.NotContains(t, out, ParticipantsMarker)
}

func TestBuild_LabelsOwnAndOtherTurns(t *testing.T) {
	transcript := []core.Message{
		{AgentName: "GPT-4o", Content: "Yes, mostly.", Round: 1},
		{AgentName: "Claude", Content: "It depends.", Round: 1},
	}
	out := build(t, Input{Question: "Is Go fast?", Self: self, Round: 2, Transcript: transcript})

	assert.Contains(t, out, HistoryMarker+" (round 2)")
	assert.Contains(t, out, "1. "+OwnTurnLabel+": Yes, mostly.")
	assert.Contains(t, out, "2. "+OtherTurnLabel+": It depends.")
	assert.NotContains(t, out, "GPT-4o: Yes")
	assert.NotContains(t, out, "Claude: It depends")
}

func TestBuild_LabelStripsOnlyLeadingName(t *testing.T) {
	transcript := []core.Message{{AgentName: "Gemini", Content: "Ratio: 3:1", Round: 1}}
	out := build(t, Input{Question: "q", Self: self, Round: 2, Transcript: transcript})
	assert.Contains(t, out, OtherTurnLabel+": Ratio: 3:1")
}

func TestBuild_Roster(t *testing.T) {
	roster := []core.Participant{
		{ID: "openai", Name: "GPT-4o", Enabled: true},
		{ID: "claude", Name: "Claude", Enabled: true},
		{ID: "gemini", Name: "Gemini", Enabled: false},
		{ID: "ollama", Name: "Llama", Enabled: true},
	}
	out := build(t, Input{Question: "q", Self: self, Round: 1, Roster: roster})

	assert.Contains(t, out, "\n"+ParticipantsMarker+" GPT-4o, Claude, Llama")
	assert.Contains(t, out, OtherParticipantsMarker+" Claude, Llama")
	assert.NotContains(t, out, "Gemini")
}

func TestBuild_RosterOmittedWhenAlone(t *testing.T) {
	roster := []core.Participant{{ID: "openai", Name: "GPT-4o", Enabled: true}}
	out := build(t, Input{Question: "q", Self: self, Round: 1, Roster: roster})
	assert.NotContains(t, out, ParticipantsMarker)
}

func TestBuild_FollowUpContext(t *testing.T) {
	var recent []core.Message
	for i := 0; i < 8; i++ {
		recent = append(recent, core.Message{AgentName: fmt.Sprintf("agent%d", i), Content: fmt.Sprintf("msg%d", i)})
	}
	recent[7].Content = strings.Repeat("x", 250)

	fc := &core.FollowUpContext{
		OriginalQuestion: "first",
		PreviousAnswers:  []string{"A1", "A2"},
		RecentMessages:   recent,
	}
	out := build(t, Input{Question: "and now?", Self: self, Round: 1, FollowUp: fc})

	assert.Contains(t, out, ContextStartMarker)
	assert.Contains(t, out, ContextEndMarker)
	assert.Contains(t, out, PreviousAnswersMarker+"\n1. A1\n2. A2")
	assert.Contains(t, out, FollowUpMarker+" and now?")
	assert.NotContains(t, out, OriginalMarker)

	assert.NotContains(t, out, "agent0:")
	assert.NotContains(t, out, "agent1:")
	assert.Contains(t, out, "agent2: msg2...")
	assert.Contains(t, out, "agent7: "+strings.Repeat("x", 200)+"...\n")
	assert.NotContains(t, out, strings.Repeat("x", 201))
}

func TestBuild_ContextWithoutAnswersIsOriginalQuestion(t *testing.T) {
	fc := &core.FollowUpContext{OriginalQuestion: "first", PreviousAnswers: []string{}}
	out := build(t, Input{Question: "q", Self: self, Round: 1, FollowUp: fc})
	assert.Contains(t, out, OriginalMarker+" q")
	assert.Contains(t, out, ContextStartMarker)
}

func TestBuild_Deterministic(t *testing.T) {
	in := Input{
		Question:   "q",
		Self:       self,
		Round:      3,
		Transcript: []core.Message{{AgentName: "Claude", Content: "c", Round: 2}},
		Roster:     []core.Participant{{ID: "openai", Name: "GPT-4o", Enabled: true}, {ID: "claude", Name: "Claude", Enabled: true}},
	}
	assert.Equal(t, build(t, in), build(t, in))
}
