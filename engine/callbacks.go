package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/logging"
	"github.com/hupe1980/agentpanel/moderator"
)

// CallbackType names a lifecycle point of a discussion run.
type CallbackType string

const (
	// CallbackBeforeTurn runs before a capability is invoked. Returning an
	// error skips the turn.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterTurn runs after every turn, successful or skipped.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackAfterSynthesis runs after the synthesis call.
	CallbackAfterSynthesis CallbackType = "after_synthesis"

	// CallbackDiscussionEnd runs once the discussion reached a terminal status.
	CallbackDiscussionEnd CallbackType = "discussion_end"
)

// CallbackContext carries what a callback may inspect. Fields that do not
// apply to a callback type are zero.
type CallbackContext struct {
	CallbackType CallbackType

	// DiscussionID identifies the run.
	DiscussionID string

	// AgentID and Round are set for turn callbacks.
	AgentID string
	Round   int

	// Message is the produced message of a successful turn.
	Message *core.Message

	// Synthesis is set for CallbackAfterSynthesis.
	Synthesis *moderator.Result

	// State is a snapshot of the discussion, set for CallbackDiscussionEnd.
	State *core.DiscussionState

	// Duration of the turn, synthesis or discussion.
	Duration time.Duration

	// Err is the failure of a turn or run, nil on success.
	Err error
}

// Callback is a lifecycle hook. Callbacks run synchronously on the engine's
// goroutine and must be safe for concurrent use when turns run in parallel.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cbCtx *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager holds callbacks per type and runs them in registration
// order. Registration and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback adds cb under its type.
func (cm *CallbackManager) RegisterCallback(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// ExecuteCallbacks runs the callbacks registered for callbackType and stops
// at the first error.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, callbackType CallbackType, cbCtx *CallbackContext) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	cbCtx.CallbackType = callbackType
	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallbacks returns callbacks writing turn, synthesis and discussion
// outcomes to logger.
func LoggingCallbacks(logger *logging.PanelLogger) []Callback {
	return []Callback{
		NewFunctionCallback(CallbackAfterTurn, func(_ context.Context, c *CallbackContext) error {
			logger.WithDiscussion("", c.DiscussionID).LogTurn(c.AgentID, c.Round, c.Duration, c.Err == nil, c.Err)
			return nil
		}),
		NewFunctionCallback(CallbackAfterSynthesis, func(_ context.Context, c *CallbackContext) error {
			var err error
			if !c.Synthesis.OK {
				err = core.NewBackendError(c.Synthesis.Backend, c.Synthesis.Model, errSynthesis)
			}
			logger.WithDiscussion("", c.DiscussionID).LogSynthesis(c.Synthesis.Backend, c.Synthesis.Model, c.Duration, c.Synthesis.OK, err)
			return nil
		}),
		NewFunctionCallback(CallbackDiscussionEnd, func(_ context.Context, c *CallbackContext) error {
			logger.WithDiscussion("", c.DiscussionID).LogDiscussion(string(c.State.Status), len(c.State.Messages), len(c.State.Skipped), c.Duration)
			return nil
		}),
	}
}
