package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hupe1980/agentpanel/conversation"
	"github.com/hupe1980/agentpanel/core"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.panel.Store().List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

type createConversationRequest struct {
	Question      string `json:"question"`
	FirstQuestion string `json:"firstQuestion"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var body createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, core.NewValidationError("body", err.Error()))
		return
	}
	question := body.Question
	if question == "" {
		question = body.FirstQuestion
	}
	if strings.TrimSpace(question) == "" {
		s.writeError(w, core.NewValidationError("question", "must not be empty"))
		return
	}

	conv, err := s.panel.Store().Create(r.Context(), question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.panel.Store().Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := s.panel.Store().Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !deleted {
		s.writeError(w, core.NewNotFoundError("conversation", id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="conversations.json"`)
	if _, err := conversation.Export(r.Context(), s.panel.Store(), w); err != nil {
		s.opts.Logger.Error("export failed", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	importer, ok := s.panel.Store().(core.ConversationImporter)
	if !ok {
		s.writeError(w, fmt.Errorf("conversation store does not support import"))
		return
	}
	n, err := conversation.Import(r.Context(), importer, r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"imported": n})
}
