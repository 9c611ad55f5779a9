// Package agentpanel provides a high-level façade over the discussion engine,
// the conversation store and the model catalog. Most applications interact
// with this package by:
//  1. Registering one model.Model per backend id in a model.Registry
//  2. Creating a Panel via New() (optionally overriding the in-memory store)
//  3. Running discussions synchronously (Discuss) or streamed (DiscussStream)
//
// The façade delegates orchestration to engine.Engine. It owns what the
// engine deliberately does not: conversation bookkeeping and follow-up
// context derivation.
package agentpanel

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentpanel/agent"
	"github.com/hupe1980/agentpanel/catalog"
	"github.com/hupe1980/agentpanel/conversation"
	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/engine"
	"github.com/hupe1980/agentpanel/logging"
	"github.com/hupe1980/agentpanel/model"
	"github.com/hupe1980/agentpanel/moderator"
)

// Options configures the Panel instance.
type Options struct {
	// Engine configuration (rounds, timeout, streaming interval)
	EngineConfig engine.Config

	// Store persists conversations (defaults to an in-memory store).
	Store core.ConversationStore

	// Synthesizer produces final answers (defaults to moderator.New over the
	// model registry).
	Synthesizer engine.Synthesizer

	// Callbacks receives engine lifecycle notifications.
	Callbacks *engine.CallbackManager

	// AgentOptions are applied to every agent built from the model registry.
	AgentOptions []func(o *agent.Options)

	// Logger (defaults to NoOp logger if nil). A *logging.PanelLogger also
	// gets the engine's logging callbacks.
	Logger logging.Logger
}

// Panel is the high-level façade aggregating engine, store and catalog.
type Panel struct {
	opts    Options
	models  *model.Registry
	agents  *agent.Registry
	engine  *engine.Engine
	catalog *catalog.Catalog
}

// New creates a Panel whose agents are the backends registered in models.
func New(models *model.Registry, optFns ...func(o *Options)) *Panel {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Callbacks:    engine.NewCallbackManager(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = conversation.NewInMemoryStore()
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = moderator.New(models, func(o *moderator.Options) {
			o.Logger = opts.Logger
		})
	}
	if pl, ok := opts.Logger.(*logging.PanelLogger); ok {
		for _, cb := range engine.LoggingCallbacks(pl) {
			opts.Callbacks.RegisterCallback(cb)
		}
	}

	agents := agent.FromModels(models, opts.AgentOptions...)
	e := engine.New(agents, opts.Synthesizer, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	return &Panel{
		opts:    opts,
		models:  models,
		agents:  agents,
		engine:  e,
		catalog: catalog.New(models, func(o *catalog.Options) { o.Logger = opts.Logger }),
	}
}

// Engine returns the underlying discussion engine.
func (p *Panel) Engine() *engine.Engine { return p.engine }

// Store returns the conversation store.
func (p *Panel) Store() core.ConversationStore { return p.opts.Store }

// Catalog returns the model catalog.
func (p *Panel) Catalog() *catalog.Catalog { return p.catalog }

// Participants lists every registered agent as an enabled roster entry with
// the backend's default model selected.
func (p *Panel) Participants() []core.Participant {
	caps := p.agents.List()
	out := make([]core.Participant, 0, len(caps))
	for _, c := range caps {
		part := core.Participant{ID: c.ID(), Name: c.Name(), Enabled: true}
		if k, ok := catalog.Lookup(c.ID()); ok {
			part.SelectedModel = k.DefaultModel
		}
		out = append(out, part)
	}
	return out
}

// DiscussRequest is the input of Discuss and DiscussStream.
type DiscussRequest struct {
	Question  string
	Providers []core.Participant
	// MaxRounds of zero selects the engine default.
	MaxRounds int
	// ConversationID continues an existing conversation. Empty starts a new one.
	ConversationID string
	Moderator      *core.Participant
}

// DiscussResult is the stored discussion together with its conversation.
type DiscussResult struct {
	*core.DiscussionState
	ConversationID string `json:"conversationId"`
}

// Discuss runs a discussion to completion and stores it in its conversation.
// Validation and unknown-conversation errors are returned before anything
// runs. Once the engine ran, the state is stored whatever its outcome and
// returned alongside the engine error, if any.
func (p *Panel) Discuss(ctx context.Context, req DiscussRequest) (*DiscussResult, error) {
	er, convID, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	state, runErr := p.engine.Run(ctx, er)
	res, err := p.store(ctx, convID, state)
	if err != nil {
		return res, err
	}
	return res, runErr
}

// DiscussStream runs a discussion reporting progress to emit. Errors found
// before the run starts are returned without any event being emitted. The
// terminal complete event is held back until the discussion is stored and
// then carries the conversation id.
func (p *Panel) DiscussStream(ctx context.Context, req DiscussRequest, emit core.Emitter) (*DiscussResult, error) {
	er, convID, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if emit == nil {
		emit = func(core.Event) {}
	}

	var complete *core.Event
	state, runErr := p.engine.Stream(ctx, er, func(ev core.Event) {
		if ev.IsTerminal() {
			complete = &ev
			return
		}
		emit(ev)
	})

	res, err := p.store(ctx, convID, state)
	if err != nil {
		emit(core.NewErrorEvent(err))
	}
	if complete == nil {
		ev := core.NewCompleteEvent()
		complete = &ev
	}
	complete.ConversationID = convID
	emit(*complete)

	if err != nil {
		return res, err
	}
	return res, runErr
}

func (p *Panel) prepare(ctx context.Context, req DiscussRequest) (engine.Request, string, error) {
	er := engine.Request{
		Question:  req.Question,
		Roster:    req.Providers,
		MaxRounds: req.MaxRounds,
		Moderator: req.Moderator,
	}
	if err := p.engine.Validate(er); err != nil {
		return er, "", err
	}
	for _, part := range core.EnabledParticipants(req.Providers) {
		if _, ok := p.agents.Get(part.ID); !ok {
			return er, "", core.NewValidationError("providers", fmt.Sprintf("unknown provider %q", part.ID))
		}
	}

	if req.ConversationID == "" {
		conv, err := p.opts.Store.Create(ctx, req.Question)
		if err != nil {
			return er, "", fmt.Errorf("create conversation: %w", err)
		}
		return er, conv.ID, nil
	}

	fc, err := p.opts.Store.FollowUpContext(ctx, req.ConversationID)
	if err != nil {
		return er, "", err
	}
	er.FollowUp = fc
	return er, req.ConversationID, nil
}

func (p *Panel) store(ctx context.Context, convID string, state *core.DiscussionState) (*DiscussResult, error) {
	res := &DiscussResult{DiscussionState: state, ConversationID: convID}
	// Stored even when the request was cancelled.
	if _, err := p.opts.Store.Append(context.WithoutCancel(ctx), convID, state); err != nil {
		p.opts.Logger.Error("storing discussion failed", "conversation_id", convID, "discussion_id", state.ID, "error", err)
		if errors.Is(err, core.ErrNotFound) {
			return res, err
		}
		return res, fmt.Errorf("store discussion: %w", err)
	}
	return res, nil
}
