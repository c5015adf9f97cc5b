package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"device-engine/internal/models"
)

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.ListModels())
}

func (s *Server) createModel(w http.ResponseWriter, r *http.Request) {
	var mdl models.DeviceModel
	if err := decodeJSON(r, &mdl); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.mgr.RegisterModel(mdl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mdl, err := s.mgr.GetModel(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mdl)
}

func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.DeleteModel(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
