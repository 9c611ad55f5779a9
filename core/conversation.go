package core

import (
	"context"
	"time"
)

const (
	// followUpDiscussions is the number of trailing discussions whose messages
	// feed a follow-up context.
	followUpDiscussions = 2
	// followUpMessages caps the messages carried into a follow-up context.
	followUpMessages = 10
)

// Conversation groups discussions on related questions so later questions
// can build on earlier answers.
//
// Contract:
//   - Title is fixed from the first question and never changes afterwards
//   - Discussions are kept in append order
//   - Clone performs a deep copy so stores can hand out snapshots safely
type Conversation struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Discussions []*DiscussionState `json:"discussions"`
}

// NewConversation creates an empty conversation titled after the question.
func NewConversation(firstQuestion string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:          NewID(),
		Title:       TruncateTitle(firstQuestion),
		CreatedAt:   now,
		UpdatedAt:   now,
		Discussions: []*DiscussionState{},
	}
}

// AddDiscussion appends a snapshot of the discussion and bumps UpdatedAt.
func (c *Conversation) AddDiscussion(d *DiscussionState) {
	c.Discussions = append(c.Discussions, d.Clone())
	if c.Title == "" {
		c.Title = TruncateTitle(d.Question)
	}
	c.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Discussions = make([]*DiscussionState, len(c.Discussions))
	for i, d := range c.Discussions {
		cp.Discussions[i] = d.Clone()
	}
	return &cp
}

// Summary returns the list view of the conversation.
func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:              c.ID,
		Title:           c.Title,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		DiscussionCount: len(c.Discussions),
	}
	if n := len(c.Discussions); n > 0 {
		s.LastQuestion = c.Discussions[n-1].Question
	}
	return s
}

// FollowUpContext derives the context handed to the next discussion: the
// first question, every recorded final answer in order and the last ten
// messages of the two most recent discussions.
func (c *Conversation) FollowUpContext() *FollowUpContext {
	fc := &FollowUpContext{
		PreviousAnswers: []string{},
		RecentMessages:  []Message{},
	}
	if len(c.Discussions) == 0 {
		return fc
	}
	fc.OriginalQuestion = c.Discussions[0].Question
	for _, d := range c.Discussions {
		if d.FinalAnswer != nil && *d.FinalAnswer != "" {
			fc.PreviousAnswers = append(fc.PreviousAnswers, *d.FinalAnswer)
		}
	}
	start := max(len(c.Discussions)-followUpDiscussions, 0)
	var recent []Message
	for _, d := range c.Discussions[start:] {
		recent = append(recent, d.Messages...)
	}
	if len(recent) > followUpMessages {
		recent = recent[len(recent)-followUpMessages:]
	}
	fc.RecentMessages = append(fc.RecentMessages, recent...)
	return fc
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	DiscussionCount int       `json:"discussionCount"`
	LastQuestion    string    `json:"lastQuestion"`
}

// ConversationStore persists conversations. Implementations must serialize
// Append and Get per conversation id and return copies the caller may mutate.
// Unknown ids yield a *NotFoundError.
type ConversationStore interface {
	Create(ctx context.Context, firstQuestion string) (*Conversation, error)
	Append(ctx context.Context, id string, d *DiscussionState) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context) ([]ConversationSummary, error)
	Delete(ctx context.Context, id string) (bool, error)
	FollowUpContext(ctx context.Context, id string) (*FollowUpContext, error)
}

// ConversationImporter is implemented by stores able to restore exported
// conversations verbatim.
type ConversationImporter interface {
	Put(ctx context.Context, c *Conversation) error
}
