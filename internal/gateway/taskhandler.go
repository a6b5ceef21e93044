package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bonsai-todo/bonsai/internal/tasks"
)

type taskRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	Due         *time.Time        `json:"due,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Recurrence  *tasks.Recurrence `json:"recurrence,omitempty"`
}

type taskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := tasks.ListFilter{Status: tasks.StatusAll}
	switch r.URL.Query().Get("status") {
	case "pending":
		filter.Status = tasks.StatusPending
	case "completed":
		filter.Status = tasks.StatusCompleted
	}
	filter.Tag = r.URL.Query().Get("tag")
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	list, err := s.tasks.List(userID(r), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.tasks.Create(userID(r), tasks.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Due:         req.Due,
		Tags:        req.Tags,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.tasks.Update(userID(r), chi.URLParam(r, "id"), tasks.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Due:         req.Due,
		Tags:        req.Tags,
	})
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if _, err := s.tasks.Delete(userID(r), chi.URLParam(r, "id")); err != nil {
		writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	task, alreadyDone, err := s.tasks.Complete(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":              task,
		"already_completed": alreadyDone,
	})
}

func writeTaskError(w http.ResponseWriter, err error) {
	if errors.Is(err, tasks.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
