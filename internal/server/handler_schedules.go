package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/slotwise/internal/engine"
	"github.com/me/slotwise/internal/store"
	"github.com/me/slotwise/pkg/model"
)

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var run model.ScheduleRun
	if err := json.NewDecoder(r.Body).Decode(&run); err != nil {
		respondBadJSON(w, reqID, err)
		return
	}
	if run.TimeRange.Start.IsZero() || run.TimeRange.End.IsZero() {
		respondError(w, reqID, model.NewValidationError("missing required field",
			model.FieldError{Field: "time_range", Message: "time_range start and end are required"}))
		return
	}

	in, err := s.store.LoadInputs(r.Context(), run.TaskIDs)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	constraints, err := selectConstraints(in.Constraints, run.ConstraintIDs)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}

	req := model.ScheduleRequest{
		Tasks:       in.Tasks,
		Resources:   in.Resources,
		Constraints: constraints,
		TimeRange:   run.TimeRange,
		Options:     s.config.Engine.ApplyDefaults(run.Options),
	}
	sched, err := s.engine.Schedule(r.Context(), req)
	if err != nil {
		s.logger.Warn("schedule failed", "error", err, "request_id", reqID)
		respondEngineError(w, reqID, err)
		return
	}

	rec := &model.ScheduleRecord{Schedule: sched, Request: req, CreatedAt: s.now()}
	if err := s.store.CreateSchedule(r.Context(), rec); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("schedule stored",
		"id", sched.ID,
		"scheduled", len(sched.Slots),
		"unscheduled", len(sched.UnscheduledTasks))
	respondCreated(w, reqID, sched)
}

// selectConstraints keeps the named constraints, or all of them when ids is
// empty. Unknown IDs are an error.
func selectConstraints(all []model.Constraint, ids []string) ([]model.Constraint, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[string]model.Constraint, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	out := make([]model.Constraint, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("constraint %s: %w", id, store.ErrNotFound)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := listOptions(r)
	if opts.Algorithm != "" && !model.Algorithm(opts.Algorithm).IsValid() {
		respondError(w, reqID, model.NewValidationError("invalid filter",
			model.FieldError{Field: "algorithm", Message: "unknown algorithm " + opts.Algorithm}))
		return
	}
	list, total, err := s.store.ListSchedules(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if list == nil {
		list = []*model.ScheduleSummary{}
	}
	respondList(w, reqID, list, pagination(opts, total))
}

// loadSchedule fetches a stored schedule or writes the error response.
func (s *Server) loadSchedule(w http.ResponseWriter, r *http.Request) (*model.ScheduleRecord, bool) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetSchedule(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return nil, false
	}
	if rec == nil {
		respondError(w, reqID, model.NewNotFoundError("schedule", id))
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}
	respondOK(w, RequestIDFromContext(r.Context()), rec.Schedule)
}

func (s *Server) handleValidateSchedule(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}
	respondOK(w, RequestIDFromContext(r.Context()), engine.ValidateSchedule(rec.Schedule))
}

func (s *Server) handleScheduleMetrics(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}
	respondOK(w, RequestIDFromContext(r.Context()), engine.ScheduleMetrics(rec.Schedule))
}

// optimizeRequest is the optional body of POST /schedules/{id}/optimize.
type optimizeRequest struct {
	Iterations           int   `json:"iterations,omitempty"`
	MaxComputationTimeMs int64 `json:"max_computation_time_ms,omitempty"`
}

func (s *Server) handleOptimizeSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondBadJSON(w, reqID, err)
		return
	}
	if body.Iterations < 0 || body.MaxComputationTimeMs < 0 {
		respondError(w, reqID, model.NewValidationError("invalid optimize options",
			model.FieldError{Field: "iterations", Message: "iterations and max_computation_time_ms must not be negative"}))
		return
	}

	rec, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}
	req := rec.Request
	if body.Iterations > 0 {
		req.Options.OptimizationIterations = body.Iterations
	}
	if body.MaxComputationTimeMs > 0 {
		req.Options.MaxComputationTimeMs = body.MaxComputationTimeMs
	}

	sched, err := s.engine.Optimize(r.Context(), req, rec.Schedule)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	rec.Schedule = sched
	if err := s.store.UpdateSchedule(r.Context(), rec); err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, sched)
}
