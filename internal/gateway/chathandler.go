package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bonsai-todo/bonsai/internal/conversations"
)

type chatMessageRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type chatConfirmRequest struct {
	ConversationID string `json:"conversation_id"`
	Confirmed      bool   `json:"confirmed"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.chat.ProcessMessage(r.Context(), userID(r), req.ConversationID, req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatConfirm(w http.ResponseWriter, r *http.Request) {
	var req chatConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	resp, err := s.chat.Confirm(r.Context(), userID(r), req.ConversationID, req.Confirmed)
	if err != nil {
		if errors.Is(err, conversations.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
