package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"device-engine/internal/models"
)

type createGroupRequest struct {
	ModelID   string `json:"modelId"`
	Count     int    `json:"count"`
	GroupID   string `json:"groupId,omitempty"`
	IDPattern string `json:"idPattern,omitempty"`
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	group, err := s.mgr.CreateGroup(req.ModelID, req.Count, req.GroupID, req.IDPattern)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) startGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var launch models.LaunchConfig
	if err := decodeJSON(r, &launch); err != nil {
		writeError(w, err)
		return
	}
	accepted, estimated, err := s.mgr.StartGroup(id, launch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"acceptedCount":       accepted,
		"estimatedDurationMs": estimated,
	})
}

func (s *Server) stopGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.StopGroup(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) dropoutGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dropout models.DropoutConfig
	if err := decodeJSON(r, &dropout); err != nil {
		writeError(w, err)
		return
	}
	affected, estimated, err := s.mgr.StartDropout(id, dropout)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"affectedCount":       affected,
		"estimatedDurationMs": estimated,
	})
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.DeleteGroup(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
