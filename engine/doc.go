// Package engine runs multi-agent discussions.
//
// A discussion is a fixed number of rounds. In every round each enabled
// roster entry takes exactly one turn, in roster order, and sees the
// transcript accumulated so far (earlier rounds plus earlier turns of the
// current round). After the last round the transcript goes to a
// Synthesizer exactly once, whether or not turns failed.
//
// Two modes share one state machine:
//
//   - Run (batch): the caller receives the terminal DiscussionState.
//   - Stream: the caller additionally receives core.Events while the
//     discussion progresses. Streamed fragments are coalesced into partial
//     message events at most once per Config.StreamInterval; the final
//     message event of a turn is always emitted. The stream ends with a
//     finalAnswer or error event followed by a complete event.
//
// Status moves pending → running → completed | failed and never backwards.
// A turn whose capability fails is recorded in DiscussionState.Skipped and
// the discussion continues. Synthesis failure, a recovered panic, or an
// expired deadline leave the discussion failed without a final answer.
//
// Lifecycle hooks (CallbackManager) observe turns, synthesis and the end of
// a run; the metrics collector and LoggingCallbacks are built on them. Each
// run, turn and synthesis is traced as an OpenTelemetry span.
//
// Example:
//
//	eng := engine.New(agents, moderator.New(models), func(o *engine.Options) {
//		o.Config.ParallelTurns = true
//	})
//	state, err := eng.Run(ctx, engine.Request{
//		Question: "Should we adopt Go generics here?",
//		Roster:   roster,
//	})
package engine
