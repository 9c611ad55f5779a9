// Package redis provides a core.ConversationStore backed by Redis, so that
// several server instances can share conversations.
//
// Each conversation is one JSON string key; a sorted set scored by
// UpdatedAt indexes them for listing. Appends run as optimistic WATCH/MULTI
// transactions on the conversation key and are retried on conflict.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentpanel/conversation"
	"github.com/hupe1980/agentpanel/core"
)

// Options configures a Store.
type Options struct {
	// KeyPrefix namespaces every key. Defaults to "agentpanel:".
	KeyPrefix string
	// MaxRetries bounds optimistic transaction retries. Defaults to 10.
	MaxRetries int
}

// Store implements core.ConversationStore and core.ConversationImporter.
type Store struct {
	client goredis.UniversalClient
	opts   Options
}

// New creates a store on top of an existing client. The store does not own
// the client.
func New(client goredis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{KeyPrefix: "agentpanel:", MaxRetries: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, opts: opts}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(id string) string { return s.opts.KeyPrefix + "conversation:" + id }

func (s *Store) indexKey() string { return s.opts.KeyPrefix + "conversations" }

func score(c *core.Conversation) float64 { return float64(c.UpdatedAt.UnixNano()) }

// Create implements core.ConversationStore.
func (s *Store) Create(ctx context.Context, firstQuestion string) (*core.Conversation, error) {
	c := core.NewConversation(firstQuestion)
	if err := s.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Put implements core.ConversationImporter.
func (s *Store) Put(ctx context.Context, c *core.Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key(c.ID), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), goredis.Z{Score: score(c), Member: c.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store conversation %s: %w", c.ID, err)
	}
	return nil
}

// Append implements core.ConversationStore.
func (s *Store) Append(ctx context.Context, id string, d *core.DiscussionState) (*core.Conversation, error) {
	key := s.key(id)
	var out *core.Conversation

	txf := func(tx *goredis.Tx) error {
		c, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		c.AddDiscussion(d)
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal conversation: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.indexKey(), goredis.Z{Score: score(c), Member: id})
			return nil
		})
		if err == nil {
			out = c
		}
		return err
	}

	for i := 0; i < s.opts.MaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("append to conversation %s: too many concurrent updates", id)
}

// Get implements core.ConversationStore.
func (s *Store) Get(ctx context.Context, id string) (*core.Conversation, error) {
	return s.load(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, id string) (*core.Conversation, error) {
	data, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, core.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return decode(data)
}

func decode(data []byte) (*core.Conversation, error) {
	var c core.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if c.Discussions == nil {
		c.Discussions = []*core.DiscussionState{}
	}
	return &c, nil
}

// List implements core.ConversationStore.
func (s *Store) List(ctx context.Context) ([]core.ConversationSummary, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]core.ConversationSummary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		c, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, c.Summary())
	}
	conversation.SortSummaries(out)
	return out, nil
}

// Delete implements core.ConversationStore.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var del *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return del.Val() > 0, nil
}

// FollowUpContext implements core.ConversationStore.
func (s *Store) FollowUpContext(ctx context.Context, id string) (*core.FollowUpContext, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.FollowUpContext(), nil
}
