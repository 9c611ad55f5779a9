package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/agentpanel/core"
)

// DumpVersion is written into every export.
const DumpVersion = 1

// Dump is the JSON document produced by Export.
type Dump struct {
	Version       int                  `json:"version"`
	ExportedAt    time.Time            `json:"exportedAt"`
	Conversations []*core.Conversation `json:"conversations"`
}

// Export writes every conversation of store to w and returns how many were
// written.
func Export(ctx context.Context, store core.ConversationStore, w io.Writer) (int, error) {
	summaries, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list conversations: %w", err)
	}
	dump := Dump{
		Version:       DumpVersion,
		ExportedAt:    time.Now().UTC(),
		Conversations: make([]*core.Conversation, 0, len(summaries)),
	}
	for _, s := range summaries {
		c, err := store.Get(ctx, s.ID)
		if err != nil {
			// deleted between List and Get
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return 0, fmt.Errorf("get conversation %s: %w", s.ID, err)
		}
		dump.Conversations = append(dump.Conversations, c)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return 0, fmt.Errorf("encode conversations: %w", err)
	}
	return len(dump.Conversations), nil
}

// Import reads a document produced by Export and stores every conversation.
// Conversations without an id are rejected.
func Import(ctx context.Context, store core.ConversationImporter, r io.Reader) (int, error) {
	var dump Dump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return 0, core.NewValidationError("body", fmt.Sprintf("invalid export document: %v", err))
	}
	if dump.Version != DumpVersion {
		return 0, core.NewValidationError("version", fmt.Sprintf("unsupported export version %d", dump.Version))
	}
	for i, c := range dump.Conversations {
		if c == nil || c.ID == "" {
			return i, core.NewValidationError("conversations", fmt.Sprintf("entry %d has no id", i))
		}
		if c.Discussions == nil {
			c.Discussions = []*core.DiscussionState{}
		}
		if err := store.Put(ctx, c); err != nil {
			return i, fmt.Errorf("put conversation %s: %w", c.ID, err)
		}
	}
	return len(dump.Conversations), nil
}
