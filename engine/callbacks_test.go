package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/internal/testutil"
	"github.com/hupe1980/agentpanel/logging"
)

func TestCallbackManager_OrderAndStop(t *testing.T) {
	cm := NewCallbackManager()
	var calls []string
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "first")
		return nil
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "second")
		return errors.New("stop")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "third")
		return nil
	}))

	cbCtx := &CallbackContext{}
	err := cm.ExecuteCallbacks(context.Background(), CallbackBeforeTurn, cbCtx)
	require.EqualError(t, err, "stop")
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, CallbackBeforeTurn, cbCtx.CallbackType)

	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackAfterTurn, &CallbackContext{}))
}

func TestEngine_LifecycleCallbacks(t *testing.T) {
	eng := newEngine(&fakeSynth{}, echo("a"), failing("b"))

	var (
		mu     sync.Mutex
		events []string
		end    *CallbackContext
	)
	record := func(ct CallbackType) Callback {
		return NewFunctionCallback(ct, func(_ context.Context, c *CallbackContext) error {
			mu.Lock()
			defer mu.Unlock()
			status := "ok"
			if c.Err != nil {
				status = "err"
			}
			events = append(events, string(ct)+":"+c.AgentID+":"+status)
			if ct == CallbackDiscussionEnd {
				end = c
			}
			return nil
		})
	}
	for _, ct := range []CallbackType{CallbackBeforeTurn, CallbackAfterTurn, CallbackAfterSynthesis, CallbackDiscussionEnd} {
		eng.Callbacks().RegisterCallback(record(ct))
	}

	_, err := eng.Run(context.Background(), Request{Question: "q", Roster: testutil.Roster("a", "b"), MaxRounds: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before_turn:a:ok", "after_turn:a:ok",
		"before_turn:b:ok", "after_turn:b:err",
		"after_synthesis::ok",
		"discussion_end::ok",
	}, events)
	require.NotNil(t, end)
	assert.Equal(t, core.StatusCompleted, end.State.Status)
	assert.Len(t, end.State.Messages, 1)
}

func TestEngine_BeforeTurnErrorSkipsTurn(t *testing.T) {
	a := echo("a")
	eng := newEngine(&fakeSynth{}, a)
	eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		return errors.New("quota exhausted")
	}))

	state, err := eng.Run(context.Background(), Request{Question: "q", Roster: testutil.Roster("a"), MaxRounds: 2})
	require.NoError(t, err)
	assert.Empty(t, a.Turns())
	require.Len(t, state.Skipped, 2)
	assert.Equal(t, "quota exhausted", state.Skipped[0].Reason)
}

func TestLoggingCallbacks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})

	eng := newEngine(&fakeSynth{fail: true}, echo("a"), failing("b"))
	for _, cb := range LoggingCallbacks(logger) {
		eng.Callbacks().RegisterCallback(cb)
	}

	_, err := eng.Run(context.Background(), Request{Question: "q", Roster: testutil.Roster("a", "b"), MaxRounds: 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Agent turn completed"`)
	assert.Contains(t, out, `"msg":"Agent turn skipped"`)
	assert.Contains(t, out, `"msg":"Synthesis failed"`)
	assert.Contains(t, out, `"msg":"Discussion finished"`)
	assert.Contains(t, out, `"status":"failed"`)
	assert.Contains(t, out, `"discussion_id"`)
}
