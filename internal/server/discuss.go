package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hupe1980/agentpanel"
	"github.com/hupe1980/agentpanel/core"
)

// discussRequest accepts both the short field names and the
// selectedProviders/moderatorProvider names used by the web client.
type discussRequest struct {
	Question          string             `json:"question"`
	Providers         []core.Participant `json:"providers"`
	SelectedProviders []core.Participant `json:"selectedProviders"`
	MaxRounds         int                `json:"maxRounds"`
	ConversationID    string             `json:"conversationId"`
	Moderator         *core.Participant  `json:"moderator"`
	ModeratorProvider *core.Participant  `json:"moderatorProvider"`
}

func (d discussRequest) toPanel() agentpanel.DiscussRequest {
	req := agentpanel.DiscussRequest{
		Question:       d.Question,
		Providers:      d.Providers,
		MaxRounds:      d.MaxRounds,
		ConversationID: d.ConversationID,
		Moderator:      d.Moderator,
	}
	if len(req.Providers) == 0 {
		req.Providers = d.SelectedProviders
	}
	if req.Moderator == nil {
		req.Moderator = d.ModeratorProvider
	}
	return req
}

func decodeDiscuss(r *http.Request) (agentpanel.DiscussRequest, error) {
	var body discussRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return agentpanel.DiscussRequest{}, core.NewValidationError("body", err.Error())
	}
	return body.toPanel(), nil
}

func (s *Server) handleDiscuss(w http.ResponseWriter, r *http.Request) {
	req, err := decodeDiscuss(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.panel.Discuss(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListParticipants(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": s.panel.Participants()})
}

// sseEvent is the wire form of a core.Event. Error events carry their text
// in message.
type sseEvent struct {
	Type           core.EventType `json:"type"`
	Message        any            `json:"message,omitempty"`
	FinalAnswer    *string        `json:"finalAnswer,omitempty"`
	Partial        bool           `json:"partial,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
}

func toSSE(ev core.Event) sseEvent {
	out := sseEvent{
		Type:           ev.Type,
		FinalAnswer:    ev.FinalAnswer,
		Partial:        ev.Partial,
		ConversationID: ev.ConversationID,
	}
	switch {
	case ev.Type == core.EventError:
		out.Message = ev.Error
	case ev.Message != nil:
		out.Message = ev.Message
	}
	return out
}

func (s *Server) handleDiscussStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	req, err := decodeDiscuss(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	started := false
	emit := func(ev core.Event) {
		if !started {
			h := w.Header()
			h.Set("Content-Type", "text/event-stream")
			h.Set("Cache-Control", "no-cache")
			h.Set("Connection", "keep-alive")
			h.Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		data, err := json.Marshal(toSSE(ev))
		if err != nil {
			s.opts.Logger.Error("marshal SSE event failed", "type", ev.Type, "error", err)
			return
		}
		// Write errors mean the client went away.
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}

	// A disconnecting client does not stop the discussion; it still runs to
	// completion, bounded by the engine timeout, and is stored.
	res, err := s.panel.DiscussStream(context.WithoutCancel(r.Context()), req, emit)
	if err != nil && res == nil {
		s.writeError(w, err)
		return
	}
	if err != nil {
		s.opts.Logger.Warn("streamed discussion failed", "conversation_id", res.ConversationID, "error", err)
	}
}
