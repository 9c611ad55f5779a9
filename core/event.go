package core

// EventType identifies the payload kind of a streamed discussion event.
type EventType string

const (
	// EventMessage carries a (possibly partial) message; consumers replace by Message.ID.
	EventMessage EventType = "message"
	// EventFinalAnswer carries the synthesized answer.
	EventFinalAnswer EventType = "finalAnswer"
	// EventError reports a synthesis or engine failure.
	EventError EventType = "error"
	// EventComplete is always the last event of a discussion.
	EventComplete EventType = "complete"
)

// Event is emitted by the engine while a discussion streams. After emission
// it should be treated as immutable.
type Event struct {
	Type        EventType `json:"type"`
	Message     *Message  `json:"message,omitempty"`
	FinalAnswer *string   `json:"finalAnswer,omitempty"`
	Error       string    `json:"error,omitempty"`
	// Partial marks message events sent before the turn finished.
	Partial bool `json:"partial,omitempty"`
	// ConversationID is set on complete events once the discussion is stored.
	ConversationID string `json:"conversationId,omitempty"`
}

// Emitter receives discussion events. It is called from the goroutine running
// the discussion and must not block for long.
type Emitter func(Event)

// NewMessageEvent wraps a copy of m in a message event.
func NewMessageEvent(m Message, partial bool) Event {
	return Event{Type: EventMessage, Message: &m, Partial: partial}
}

// NewFinalAnswerEvent creates the event carrying the synthesized answer.
func NewFinalAnswerEvent(answer *string) Event {
	var a *string
	if answer != nil {
		v := *answer
		a = &v
	}
	return Event{Type: EventFinalAnswer, FinalAnswer: a}
}

// NewErrorEvent creates an error event from err.
func NewErrorEvent(err error) Event {
	msg := "discussion failed"
	if err != nil {
		msg = err.Error()
	}
	return Event{Type: EventError, Error: msg}
}

// NewCompleteEvent creates the terminal event.
func NewCompleteEvent() Event { return Event{Type: EventComplete} }

// IsTerminal reports whether the event ends the stream.
func (e Event) IsTerminal() bool { return e.Type == EventComplete }
