package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/me/slotwise/internal/engine"
	"github.com/me/slotwise/internal/store"
	"github.com/me/slotwise/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope. The
// status follows from the error code.
func respondError(w http.ResponseWriter, reqID string, apiErr *model.APIError) {
	respondJSON(w, apiErr.Code.HTTPStatus(), reqID, nil, nil, apiErr)
}

// respondInternal reports an unexpected store or encoding failure.
func respondInternal(w http.ResponseWriter, reqID string, err error) {
	respondError(w, reqID, &model.APIError{Code: model.ErrInternal, Message: err.Error()})
}

// respondBadJSON reports an undecodable request body.
func respondBadJSON(w http.ResponseWriter, reqID string, err error) {
	respondError(w, reqID, &model.APIError{
		Code:    model.ErrValidation,
		Message: "Invalid JSON body: " + err.Error(),
	})
}

// respondEngineError maps a failed engine call onto the envelope. Fatal
// request errors are 422; anything else is internal.
func respondEngineError(w http.ResponseWriter, reqID string, err error) {
	var engErr *engine.Error
	switch {
	case errors.As(err, &engErr):
		respondError(w, reqID, model.NewSchedulingError(engErr.Kind.Error(), engErr.Error(), engErr.Cycle))
	case errors.Is(err, store.ErrNotFound):
		respondError(w, reqID, &model.APIError{Code: model.ErrNotFound, Message: err.Error()})
	default:
		respondInternal(w, reqID, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// listOptions reads limit, offset and algorithm from the query string.
func listOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Algorithm = q.Get("algorithm")
	opts.Clamp()
	return opts
}

func pagination(opts model.ListOptions, total int) *model.Pagination {
	return &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	}
}
