package core

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a discussion. Transitions only go forward:
// pending → running → completed | failed.
type Status string

const (
	// StatusPending is the state before the first round starts.
	StatusPending Status = "pending"
	// StatusRunning is the state while rounds or synthesis are in progress.
	StatusRunning Status = "running"
	// StatusCompleted is the terminal state of a discussion with a final answer.
	StatusCompleted Status = "completed"
	// StatusFailed is the terminal state of a discussion without a final answer.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusFailed }

// AgentIdentity names the capability taking a turn together with the model
// selection for that call. It is a value passed per call; capabilities keep
// no selection state of their own.
type AgentIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Model       string `json:"model,omitempty"`
}

// Participant is a roster entry submitted by the caller.
type Participant struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`
	SelectedModel string `json:"selectedModel,omitempty"`
}

// Identity returns the identity used for a turn by this participant.
func (p Participant) Identity() AgentIdentity {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	return AgentIdentity{ID: p.ID, DisplayName: name, Model: p.SelectedModel}
}

// EnabledParticipants filters the roster to enabled entries preserving order.
func EnabledParticipants(roster []Participant) []Participant {
	out := make([]Participant, 0, len(roster))
	for _, p := range roster {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Message is one agent turn in the transcript. The ID is assigned once per
// turn and reused by every streaming update so consumers can replace by id.
type Message struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	AgentName string    `json:"agentName"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Round     int       `json:"round"`
}

// SkippedTurn records an agent turn that produced no message.
type SkippedTurn struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
	Round     int    `json:"round"`
	Reason    string `json:"reason"`
}

// DiscussionState is the full record of one discussion. Only the engine
// mutates it; once Status is terminal it is treated as immutable.
type DiscussionState struct {
	ID           string        `json:"id"`
	Question     string        `json:"question"`
	Round        int           `json:"round"`
	MaxRounds    int           `json:"maxRounds"`
	Messages     []Message     `json:"messages"`
	Participants []Participant `json:"participants"`
	Moderator    *Participant  `json:"moderator,omitempty"`
	Status       Status        `json:"status"`
	FinalAnswer  *string       `json:"finalAnswer,omitempty"`
	Skipped      []SkippedTurn `json:"skipped,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
}

// NewDiscussionState creates a pending discussion for the given question.
func NewDiscussionState(question string, roster []Participant, maxRounds int, moderator *Participant) *DiscussionState {
	var mod *Participant
	if moderator != nil {
		m := *moderator
		mod = &m
	}
	return &DiscussionState{
		ID:           NewID(),
		Question:     question,
		MaxRounds:    maxRounds,
		Messages:     []Message{},
		Participants: slices.Clone(roster),
		Moderator:    mod,
		Status:       StatusPending,
	}
}

// Answer returns the final answer or the empty string.
func (d *DiscussionState) Answer() string {
	if d == nil || d.FinalAnswer == nil {
		return ""
	}
	return *d.FinalAnswer
}

// Clone returns a deep copy of the discussion.
func (d *DiscussionState) Clone() *DiscussionState {
	if d == nil {
		return nil
	}
	c := *d
	c.Messages = slices.Clone(d.Messages)
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	c.Participants = slices.Clone(d.Participants)
	c.Skipped = slices.Clone(d.Skipped)
	if d.Moderator != nil {
		m := *d.Moderator
		c.Moderator = &m
	}
	if d.FinalAnswer != nil {
		a := *d.FinalAnswer
		c.FinalAnswer = &a
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// FollowUpContext carries the outcome of earlier discussions of a
// conversation into a new one. It is derived once and never mutated.
type FollowUpContext struct {
	OriginalQuestion string    `json:"originalQuestion"`
	PreviousAnswers  []string  `json:"previousAnswers"`
	RecentMessages   []Message `json:"recentMessages"`
}

// IsFollowUp reports whether the context carries at least one prior answer.
func (c *FollowUpContext) IsFollowUp() bool {
	return c != nil && len(c.PreviousAnswers) > 0
}
