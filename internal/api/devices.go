package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"device-engine/internal/models"
)

type createDeviceRequest struct {
	ModelID  string `json:"modelId"`
	DeviceID string `json:"deviceId,omitempty"`
	GroupID  string `json:"groupId,omitempty"`
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	devices := s.mgr.ListDevices(q.Get("modelId"), q.Get("groupId"), q.Get("status"), limit, offset)
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dev, err := s.mgr.CreateDevice(req.ModelID, req.DeviceID, req.GroupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.mgr.GetDevice(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.DeleteDevice(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.StartDevice(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) stopDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.StopDevice(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) deviceMetrics(w http.ResponseWriter, r *http.Request) {
	dev, err := s.mgr.GetDevice(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var connectionDuration float64
	if dev.StartedAt != nil {
		connectionDuration = secondsSince(*dev.StartedAt)
	}

	msgs, sentBytes := dev.SentCounters()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messagesSent":       msgs,
		"bytesSent":          sentBytes,
		"lastTelemetry":      dev.LastTelemetry(),
		"connectionDuration": connectionDuration,
		"connectionState":    dev.ConnectionState,
	})
}

func (s *Server) bindDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var binding models.BindingConfig
	if err := decodeJSON(r, &binding); err != nil {
		writeError(w, err)
		return
	}
	webhookURL, err := s.mgr.BindDevice(r.Context(), id, binding)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]interface{}{"status": "bound"}
	if webhookURL != "" {
		resp["webhookUrl"] = webhookURL
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) unbindDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.UnbindDevice(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unbound"})
}

func (s *Server) getBinding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	binding, err := s.mgr.GetBinding(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, binding)
}
