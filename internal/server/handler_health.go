package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/slotwise/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
	Tasks     int    `json:"tasks"`
	Schedules int    `json:"schedules"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "ok",
	}
	probe := model.ListOptions{Limit: 1}
	if _, n, err := s.store.ListTasks(r.Context(), probe); err != nil {
		s.logger.Warn("health probe failed", "error", err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
	} else {
		resp.Tasks = n
	}
	if _, n, err := s.store.ListSchedules(r.Context(), probe); err == nil {
		resp.Schedules = n
	}
	respondOK(w, reqID, resp)
}

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "slotwise API",
		Version:     "v1",
		Description: "Constraint-based calendar scheduling",
		Endpoints: []endpointInfo{
			{"/api/v1/tasks", []string{"GET", "POST"}, "Task management"},
			{"/api/v1/tasks/{id}", []string{"GET", "DELETE"}, "Single task operations"},
			{"/api/v1/resources", []string{"GET", "POST"}, "Resource management"},
			{"/api/v1/constraints", []string{"GET", "POST"}, "Constraint management"},
			{"/api/v1/schedules", []string{"GET", "POST"}, "Compute and list schedules. GET accepts ?algorithm="},
			{"/api/v1/schedules/{id}", []string{"GET"}, "Single schedule"},
			{"/api/v1/schedules/{id}/validate", []string{"POST"}, "Re-check a stored schedule"},
			{"/api/v1/schedules/{id}/metrics", []string{"GET"}, "Schedule summary metrics"},
			{"/api/v1/schedules/{id}/optimize", []string{"POST"}, "Run further optimization on a stored schedule"},
			{"/api/v1/slots/available", []string{"POST"}, "Find free slots for a set of resources"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
