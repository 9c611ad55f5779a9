package core

import (
	"errors"
	"testing"
)

func TestEvent_Constructors(t *testing.T) {
	m := Message{ID: "m1", AgentID: "openai", AgentName: "GPT-4o", Content: "hi", Round: 1}
	e := NewMessageEvent(m, true)
	if e.Type != EventMessage || e.Message == nil || e.Message.ID != "m1" || !e.Partial {
		t.Fatalf("NewMessageEvent malformed: %+v", e)
	}

	m.Content = "changed"
	if e.Message.Content != "hi" {
		t.Fatalf("message event must hold a copy, got %q", e.Message.Content)
	}

	answer := "42"
	fa := NewFinalAnswerEvent(&answer)
	answer = "43"
	if fa.Type != EventFinalAnswer || fa.FinalAnswer == nil || *fa.FinalAnswer != "42" {
		t.Fatalf("NewFinalAnswerEvent malformed: %+v", fa)
	}
	if NewFinalAnswerEvent(nil).FinalAnswer != nil {
		t.Fatal("absent answer should stay absent")
	}

	ee := NewErrorEvent(errors.New("boom"))
	if ee.Type != EventError || ee.Error != "boom" {
		t.Fatalf("NewErrorEvent malformed: %+v", ee)
	}
	if NewErrorEvent(nil).Error == "" {
		t.Fatal("error event needs a message")
	}
}

func TestEvent_IsTerminal(t *testing.T) {
	if !NewCompleteEvent().IsTerminal() {
		t.Error("complete event should be terminal")
	}
	if NewErrorEvent(errors.New("x")).IsTerminal() {
		t.Error("error event is followed by complete")
	}
}
