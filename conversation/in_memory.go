package conversation

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/agentpanel/core"
)

// InMemoryStore is a volatile ConversationStore keeping conversations in a
// process local map. It is safe for concurrent access. Every returned
// conversation is a clone.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*core.Conversation)}
}

// Create implements core.ConversationStore.
func (s *InMemoryStore) Create(_ context.Context, firstQuestion string) (*core.Conversation, error) {
	c := core.NewConversation(firstQuestion)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
	return c.Clone(), nil
}

// Append implements core.ConversationStore.
func (s *InMemoryStore) Append(_ context.Context, id string, d *core.DiscussionState) (*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, core.NewNotFoundError("conversation", id)
	}
	c.AddDiscussion(d)
	return c.Clone(), nil
}

// Get implements core.ConversationStore.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, core.NewNotFoundError("conversation", id)
	}
	return c.Clone(), nil
}

// List implements core.ConversationStore. Most recently updated first.
func (s *InMemoryStore) List(_ context.Context) ([]core.ConversationSummary, error) {
	s.mu.RLock()
	out := make([]core.ConversationSummary, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Summary())
	}
	s.mu.RUnlock()
	SortSummaries(out)
	return out, nil
}

// Delete implements core.ConversationStore.
func (s *InMemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return false, nil
	}
	delete(s.conversations, id)
	return true, nil
}

// FollowUpContext implements core.ConversationStore.
func (s *InMemoryStore) FollowUpContext(_ context.Context, id string) (*core.FollowUpContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, core.NewNotFoundError("conversation", id)
	}
	return c.FollowUpContext(), nil
}

// Put implements core.ConversationImporter, replacing any conversation with
// the same id.
func (s *InMemoryStore) Put(_ context.Context, c *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c.Clone()
	return nil
}

// SortSummaries orders summaries by UpdatedAt descending, then by id.
func SortSummaries(s []core.ConversationSummary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].UpdatedAt.After(s[j].UpdatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
