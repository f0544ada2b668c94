package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/me/slotwise/pkg/model"
)

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var res model.Resource
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		respondBadJSON(w, reqID, err)
		return
	}
	if res.ID == "" {
		res.ID = "res_" + uuid.New().String()
	}
	if res.Capacity < 0 {
		respondError(w, reqID, model.NewValidationError("invalid resource",
			model.FieldError{Field: "capacity", Message: "capacity must not be negative"}))
		return
	}
	var details []model.FieldError
	for _, win := range res.Availability {
		if win.DayOfWeek < 0 || win.DayOfWeek > 6 {
			details = append(details, model.FieldError{Field: "availability.day_of_week", Message: "day_of_week must be 0-6"})
		}
		if _, err := model.ParseClock(win.Start); err != nil {
			details = append(details, model.FieldError{Field: "availability.start", Message: err.Error()})
		}
		if _, err := model.ParseClock(win.End); err != nil {
			details = append(details, model.FieldError{Field: "availability.end", Message: err.Error()})
		}
	}
	if len(details) > 0 {
		respondError(w, reqID, model.NewValidationError("invalid resource", details...))
		return
	}

	if err := s.store.PutResource(r.Context(), &res); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("resource stored", "id", res.ID)
	respondCreated(w, reqID, res)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resources, err := s.store.ListResources(r.Context())
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if resources == nil {
		resources = []*model.Resource{}
	}
	respondOK(w, reqID, resources)
}

func (s *Server) handleCreateConstraint(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	// Constraint.UnmarshalJSON rejects unknown categories and bad params.
	var c model.Constraint
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		respondBadJSON(w, reqID, err)
		return
	}
	if c.ID == "" {
		c.ID = "con_" + uuid.New().String()
	}
	if c.Kind != model.ConstraintHard && c.Kind != model.ConstraintSoft {
		respondError(w, reqID, model.NewValidationError("invalid constraint",
			model.FieldError{Field: "kind", Message: "kind must be hard or soft"}))
		return
	}

	if err := s.store.PutConstraint(r.Context(), &c); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("constraint stored", "id", c.ID, "category", c.Category, "kind", c.Kind)
	respondCreated(w, reqID, c)
}

func (s *Server) handleListConstraints(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	constraints, err := s.store.ListConstraints(r.Context())
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if constraints == nil {
		constraints = []*model.Constraint{}
	}
	respondOK(w, reqID, constraints)
}
