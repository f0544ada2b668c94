package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/slotwise/internal/store"
	"github.com/me/slotwise/pkg/model"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var task model.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		respondBadJSON(w, reqID, err)
		return
	}
	if task.ID == "" {
		task.ID = "task_" + uuid.New().String()
	}
	if details := checkTask(&task); len(details) > 0 {
		respondError(w, reqID, model.NewValidationError("invalid task", details...))
		return
	}

	if err := s.store.PutTask(r.Context(), &task); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("task stored", "id", task.ID, "priority", task.Priority)
	respondCreated(w, reqID, task)
}

// checkTask rejects fields that can never be scheduled. Anything the engine
// resolves at run time (unknown resources, cycles) is left to the engine.
func checkTask(t *model.Task) []model.FieldError {
	var details []model.FieldError
	if t.Duration <= 0 {
		details = append(details, model.FieldError{Field: "duration", Message: "duration must be positive"})
	}
	if t.Priority < 0 || t.Priority > 10 {
		details = append(details, model.FieldError{Field: "priority", Message: "priority must be between 1 and 10"})
	}
	for _, dep := range t.Dependencies {
		if dep.TaskID == t.ID {
			details = append(details, model.FieldError{Field: "dependencies", Message: "task cannot depend on itself"})
		}
	}
	if t.EarliestStart != nil && t.LatestEnd != nil && !t.EarliestStart.Before(*t.LatestEnd) {
		details = append(details, model.FieldError{Field: "latest_end", Message: "latest_end must be after earliest_start"})
	}
	return details
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := listOptions(r)
	tasks, total, err := s.store.ListTasks(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	respondList(w, reqID, tasks, pagination(opts, total))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if task == nil {
		respondError(w, reqID, model.NewNotFoundError("task", id))
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := s.store.DeleteTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, reqID, model.NewNotFoundError("task", id))
		return
	}
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "deleted": true})
}
