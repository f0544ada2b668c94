package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/me/slotwise/internal/store"
	"github.com/me/slotwise/pkg/model"
)

func (s *Server) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var q model.SlotQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondBadJSON(w, reqID, err)
		return
	}
	var details []model.FieldError
	if len(q.ResourceIDs) == 0 {
		details = append(details, model.FieldError{Field: "resource_ids", Message: "at least one resource is required"})
	}
	if q.Duration <= 0 {
		details = append(details, model.FieldError{Field: "duration", Message: "duration must be positive"})
	}
	if len(details) > 0 {
		respondError(w, reqID, model.NewValidationError("invalid slot query", details...))
		return
	}

	stored, err := s.store.ListResources(r.Context())
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	resources, err := selectResources(stored, q.ResourceIDs)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	allConstraints, err := s.store.ListConstraints(r.Context())
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	flat := make([]model.Constraint, len(allConstraints))
	for i, c := range allConstraints {
		flat[i] = *c
	}
	constraints, err := selectConstraints(flat, q.ConstraintIDs)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}

	slots, err := s.engine.FindAvailableSlots(resources, q.Duration, constraints, q.TimeRange, q.Count)
	if err != nil {
		respondEngineError(w, reqID, err)
		return
	}
	if slots == nil {
		slots = []model.AvailableSlot{}
	}
	respondOK(w, reqID, slots)
}

func selectResources(all []*model.Resource, ids []string) ([]model.Resource, error) {
	byID := make(map[string]*model.Resource, len(all))
	for _, res := range all {
		byID[res.ID] = res
	}
	out := make([]model.Resource, 0, len(ids))
	for _, id := range ids {
		res, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("resource %s: %w", id, store.ErrNotFound)
		}
		out = append(out, *res)
	}
	return out, nil
}
