package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handlePutConfig implements PUT /v1/programs/{program_id}/config
//: accepts opaque program config JSON, 204 on success.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "x-tenant-id header is required")
		return
	}
	programID := chi.URLParam(r, "programID")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unreadable body")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	if err := s.store.Put(r.Context(), tenant, programID, json.RawMessage(body)); err != nil {
		writeError(w, http.StatusInternalServerError, "config write failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type programConfigResponse struct {
	ProgramID string          `json:"program_id"`
	Config    json.RawMessage `json:"config"`
}

// handleGetConfig implements GET /v1/programs/{program_id}/config.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "x-tenant-id header is required")
		return
	}
	programID := chi.URLParam(r, "programID")
	cfg, ok, err := s.store.Get(r.Context(), nil, tenant, programID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config read failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no config for program")
		return
	}
	writeJSON(w, http.StatusOK, programConfigResponse{ProgramID: programID, Config: cfg})
}
