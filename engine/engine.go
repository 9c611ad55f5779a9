package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentpanel/agent"
	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/logging"
	"github.com/hupe1980/agentpanel/moderator"
)

// Capabilities resolves a roster entry to the capability taking its turns.
// *agent.Registry satisfies it.
type Capabilities interface {
	Get(id string) (agent.Capability, bool)
}

// Synthesizer produces the final answer of a discussion. *moderator.Synthesizer
// satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, transcript []core.Message, selection *core.Participant) moderator.Result
}

// Config tunes discussion runs.
type Config struct {
	// MaxRounds is used when a request does not name a round count.
	MaxRounds int

	// RoundLimit rejects requests asking for more rounds. Zero disables the check.
	RoundLimit int

	// Timeout bounds a whole run, synthesis included. Zero means the request
	// context alone decides.
	Timeout time.Duration

	// StreamInterval is the minimum gap between two partial message events of
	// one turn. Zero or less forwards every fragment.
	StreamInterval time.Duration

	// ParallelTurns runs the turns of a round concurrently against the
	// transcript as it was at round start. Messages are still appended in
	// roster order.
	ParallelTurns bool
}

// DefaultConfig is applied by New.
var DefaultConfig = Config{
	MaxRounds:      3,
	RoundLimit:     10,
	StreamInterval: 100 * time.Millisecond,
}

// Options configures an Engine.
type Options struct {
	Config Config

	// Callbacks receives lifecycle notifications. Defaults to an empty manager.
	Callbacks *CallbackManager

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer

	// Clock is consulted for timestamps and the streaming time gate.
	Clock func() time.Time
}

// Request describes one discussion.
type Request struct {
	Question string
	Roster   []core.Participant
	// MaxRounds of zero selects Config.MaxRounds.
	MaxRounds int
	FollowUp  *core.FollowUpContext
	// Moderator selects the synthesis backend; nil selects the default.
	Moderator *core.Participant
}

// Engine runs discussions: every enabled participant speaks once per round,
// in roster order, then the transcript is synthesized into one answer.
//
// A failed turn never aborts a discussion; it is recorded in
// DiscussionState.Skipped and the run continues. Synthesis runs exactly once
// per validated run. The Engine holds no per-discussion state and is safe
// for concurrent use.
type Engine struct {
	caps      Capabilities
	synth     Synthesizer
	config    Config
	callbacks *CallbackManager
	logger    logging.Logger
	tracer    trace.Tracer
	clock     func() time.Time
}

// New creates an Engine.
func New(caps Capabilities, synth Synthesizer, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Callbacks: NewCallbackManager(),
		Logger:    logging.NoOpLogger{},
		Clock:     time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/agentpanel/engine")
	}
	return &Engine{
		caps:      caps,
		synth:     synth,
		config:    opts.Config,
		callbacks: opts.Callbacks,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		clock:     opts.Clock,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Callbacks returns the callback manager for registration.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Validate checks a request without running it.
func (e *Engine) Validate(req Request) error {
	if strings.TrimSpace(req.Question) == "" {
		return core.NewValidationError("question", "must not be empty")
	}
	if len(core.EnabledParticipants(req.Roster)) == 0 {
		return core.NewValidationError("providers", "at least one enabled participant is required")
	}
	rounds := e.rounds(req)
	if rounds < 1 {
		return core.NewValidationError("maxRounds", "must be at least 1")
	}
	if e.config.RoundLimit > 0 && rounds > e.config.RoundLimit {
		return core.NewValidationError("maxRounds", fmt.Sprintf("must not exceed %d", e.config.RoundLimit))
	}
	return nil
}

// Run executes a discussion without emitting events. The returned state is
// terminal. The error is a *core.ValidationError or *core.EngineError when
// the run failed for those reasons; a failed synthesis leaves the state
// failed with a nil error.
func (e *Engine) Run(ctx context.Context, req Request) (*core.DiscussionState, error) {
	return e.run(ctx, req, nil)
}

// Stream executes a discussion like Run while reporting progress to emit:
// partial and final message events per turn, then either a finalAnswer or an
// error event, and always a closing complete event. emit is never called
// concurrently.
func (e *Engine) Stream(ctx context.Context, req Request, emit core.Emitter) (*core.DiscussionState, error) {
	if emit == nil {
		emit = func(core.Event) {}
	}
	var mu sync.Mutex
	return e.run(ctx, req, func(ev core.Event) {
		mu.Lock()
		defer mu.Unlock()
		emit(ev)
	})
}

func (e *Engine) rounds(req Request) int {
	if req.MaxRounds == 0 {
		return e.config.MaxRounds
	}
	return req.MaxRounds
}

func (e *Engine) run(ctx context.Context, req Request, emit core.Emitter) (state *core.DiscussionState, err error) {
	state = core.NewDiscussionState(req.Question, req.Roster, e.rounds(req), req.Moderator)
	state.StartedAt = e.clock()

	ctx, span := e.tracer.Start(ctx, "engine.discussion", trace.WithAttributes(
		attribute.String("discussion.id", state.ID),
		attribute.Int("discussion.max_rounds", state.MaxRounds),
		attribute.Int("discussion.participants", len(core.EnabledParticipants(req.Roster))),
		attribute.Bool("discussion.follow_up", req.FollowUp.IsFollowUp()),
	))

	defer func() {
		now := e.clock()
		state.CompletedAt = &now
		span.SetAttributes(attribute.String("discussion.status", string(state.Status)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		_ = e.callbacks.ExecuteCallbacks(ctx, CallbackDiscussionEnd, &CallbackContext{
			DiscussionID: state.ID,
			State:        state.Clone(),
			Duration:     now.Sub(state.StartedAt),
			Err:          err,
		})
		if emit != nil {
			emit(core.NewCompleteEvent())
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = core.NewEngineError("run", fmt.Errorf("panic: %v", r))
			e.fail(state, err, emit)
		}
	}()

	if err = e.Validate(req); err != nil {
		e.fail(state, err, emit)
		return state, err
	}

	runCtx := ctx
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	req.Roster = e.resolveRoster(req.Roster)
	state.Participants = slices.Clone(req.Roster)

	state.Status = core.StatusRunning
	e.logger.Debug("discussion started", "discussion_id", state.ID, "max_rounds", state.MaxRounds)

	roster := core.EnabledParticipants(req.Roster)
	for round := 1; round <= state.MaxRounds; round++ {
		state.Round = round
		if e.config.ParallelTurns {
			err = e.parallelRound(runCtx, state, req, roster, round, emit)
		} else {
			err = e.sequentialRound(runCtx, state, req, roster, round, emit)
		}
		if err != nil {
			e.fail(state, err, emit)
			return state, err
		}
	}

	res := e.synthesize(runCtx, state, req)
	if ctxErr := runCtx.Err(); ctxErr != nil {
		err = contextError("synthesize", ctxErr)
		e.fail(state, err, emit)
		return state, err
	}
	if !res.OK {
		e.fail(state, fmt.Errorf("%w: %s", errSynthesis, res.Reasoning), emit)
		return state, nil
	}

	answer := res.FinalAnswer
	state.FinalAnswer = &answer
	state.Status = core.StatusCompleted
	if emit != nil {
		emit(core.NewFinalAnswerEvent(&answer))
	}
	return state, nil
}

var errSynthesis = errors.New("synthesis failed")

// resolveRoster returns a copy of the roster with empty names replaced by
// the registered capability's display name.
func (e *Engine) resolveRoster(roster []core.Participant) []core.Participant {
	out := slices.Clone(roster)
	for i, p := range out {
		if p.Name != "" {
			continue
		}
		if capability, ok := e.caps.Get(p.ID); ok {
			out[i].Name = capability.Name()
		}
	}
	return out
}

func (e *Engine) fail(state *core.DiscussionState, err error, emit core.Emitter) {
	state.Status = core.StatusFailed
	state.FinalAnswer = nil
	state.Error = err.Error()
	e.logger.Debug("discussion failed", "discussion_id", state.ID, "error", err)
	if emit != nil {
		emit(core.NewErrorEvent(err))
	}
}

func contextError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewTimeoutError(op, err)
	}
	return core.NewEngineError(op, err)
}

func (e *Engine) sequentialRound(ctx context.Context, state *core.DiscussionState, req Request, roster []core.Participant, round int, emit core.Emitter) error {
	for _, p := range roster {
		out := e.turn(ctx, state.ID, req, p, round, slices.Clone(state.Messages), emit)
		if err := e.record(ctx, state, out, emit); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) parallelRound(ctx context.Context, state *core.DiscussionState, req Request, roster []core.Participant, round int, emit core.Emitter) error {
	frozen := slices.Clone(state.Messages)
	outcomes := make([]turnOutcome, len(roster))

	var g errgroup.Group
	for i, p := range roster {
		g.Go(func() error {
			outcomes[i] = e.turn(ctx, state.ID, req, p, round, slices.Clone(frozen), emit)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		if err := e.record(ctx, state, out, emit); err != nil {
			return err
		}
	}
	return nil
}

// record applies a turn outcome to the state. Cancellation and captured
// panics abort the run.
func (e *Engine) record(ctx context.Context, state *core.DiscussionState, out turnOutcome, emit core.Emitter) error {
	if out.fatal != nil {
		return out.fatal
	}
	if err := ctx.Err(); err != nil {
		return contextError("turn", err)
	}
	if out.skip != nil {
		state.Skipped = append(state.Skipped, *out.skip)
		return nil
	}
	state.Messages = append(state.Messages, *out.msg)
	if emit != nil {
		emit(core.NewMessageEvent(*out.msg, false))
	}
	return nil
}

type turnOutcome struct {
	msg   *core.Message
	skip  *core.SkippedTurn
	fatal error
}

type panicError struct{ value any }

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func (e *Engine) turn(ctx context.Context, discussionID string, req Request, p core.Participant, round int, transcript []core.Message, emit core.Emitter) turnOutcome {
	identity := p.Identity()
	cbCtx := &CallbackContext{DiscussionID: discussionID, AgentID: p.ID, Round: round}

	skip := func(err error) turnOutcome {
		cbCtx.Err = err
		_ = e.callbacks.ExecuteCallbacks(ctx, CallbackAfterTurn, cbCtx)
		e.logger.Warn("agent turn skipped", "agent", p.ID, "round", round, "error", err)
		return turnOutcome{skip: &core.SkippedTurn{
			AgentID:   p.ID,
			AgentName: identity.DisplayName,
			Round:     round,
			Reason:    err.Error(),
		}}
	}

	capability, ok := e.caps.Get(p.ID)
	if !ok {
		return skip(fmt.Errorf("no capability registered for %q", p.ID))
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, cbCtx); err != nil {
		return skip(err)
	}

	ctx, span := e.tracer.Start(ctx, "engine.turn", trace.WithAttributes(
		attribute.String("agent.id", p.ID),
		attribute.String("agent.model", identity.Model),
		attribute.Int("discussion.round", round),
	))
	defer span.End()

	start := e.clock()
	msg := core.Message{
		ID:        core.NewID(),
		AgentID:   p.ID,
		AgentName: identity.DisplayName,
		Round:     round,
		Timestamp: start,
	}
	turn := agent.Turn{
		Identity:   identity,
		Question:   req.Question,
		Transcript: transcript,
		Round:      round,
		FollowUp:   req.FollowUp,
		Roster:     req.Roster,
	}

	res, err := e.invoke(ctx, capability, turn, msg, emit)
	cbCtx.Duration = e.clock().Sub(start)

	var pe *panicError
	if errors.As(err, &pe) {
		span.SetStatus(codes.Error, err.Error())
		return turnOutcome{fatal: core.NewEngineError("turn", err)}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return skip(err)
	}

	msg.Content = res.Content
	cbCtx.Message = &msg
	_ = e.callbacks.ExecuteCallbacks(ctx, CallbackAfterTurn, cbCtx)
	return turnOutcome{msg: &msg}
}

// invoke calls the capability. In streaming mode fragments accumulate into
// partial message events passed through a time gate: the first partial
// follows one interval after the turn started, later ones at most once per
// interval.
func (e *Engine) invoke(ctx context.Context, capability agent.Capability, turn agent.Turn, msg core.Message, emit core.Emitter) (res agent.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	if emit == nil {
		return capability.Generate(ctx, turn)
	}

	limiter := rate.NewLimiter(rate.Every(e.config.StreamInterval), 1)
	limiter.AllowN(e.clock(), 1)

	var content strings.Builder
	return capability.GenerateStreaming(ctx, turn, func(fragment string) {
		content.WriteString(fragment)
		if !limiter.AllowN(e.clock(), 1) {
			return
		}
		partial := msg
		partial.Content = content.String()
		emit(core.NewMessageEvent(partial, true))
	})
}

func (e *Engine) synthesize(ctx context.Context, state *core.DiscussionState, req Request) moderator.Result {
	ctx, span := e.tracer.Start(ctx, "engine.synthesis", trace.WithAttributes(
		attribute.Int("discussion.messages", len(state.Messages)),
	))
	defer span.End()

	start := e.clock()
	res := e.synth.Synthesize(ctx, req.Question, slices.Clone(state.Messages), req.Moderator)
	span.SetAttributes(attribute.String("synthesis.backend", res.Backend), attribute.Bool("synthesis.ok", res.OK))
	if !res.OK {
		span.SetStatus(codes.Error, res.Reasoning)
	}

	_ = e.callbacks.ExecuteCallbacks(ctx, CallbackAfterSynthesis, &CallbackContext{
		DiscussionID: state.ID,
		Synthesis:    &res,
		Duration:     e.clock().Sub(start),
	})
	return res
}
