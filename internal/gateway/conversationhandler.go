package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bonsai-todo/bonsai/internal/conversations"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.conversations.List(userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*conversations.Conversation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conv, err := s.conversations.Get(userID(r), id)
	if err != nil {
		writeConversationError(w, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := s.conversations.Messages(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []*conversations.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     msgs,
	})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.Delete(userID(r), chi.URLParam(r, "id")); err != nil {
		writeConversationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeConversationError(w http.ResponseWriter, err error) {
	if errors.Is(err, conversations.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
