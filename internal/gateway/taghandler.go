package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bonsai-todo/bonsai/internal/tasks"
)

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type tagPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.ListTags(userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*tasks.Tag{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tag, err := s.tasks.CreateTag(userID(r), tasks.CreateTagParams{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tagPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tag, err := s.tasks.UpdateTag(userID(r), chi.URLParam(r, "id"), tasks.UpdateTagParams{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		if errors.Is(err, tasks.ErrTagNotFound) {
			writeError(w, http.StatusNotFound, "tag not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.DeleteTag(userID(r), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, tasks.ErrTagNotFound) {
			writeError(w, http.StatusNotFound, "tag not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
