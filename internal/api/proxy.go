package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// webhook is the sole runtime-dispatched route: the target proxy device is
// resolved from the manager's webhook registry at request time, per §4.6.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body", "code": "validation_error"})
		return
	}
	defer r.Body.Close()

	var probe interface{}
	if err := json.Unmarshal(body, &probe); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is not valid JSON", "code": "validation_error"})
		return
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a JSON object", "code": "validation_error"})
		return
	}

	if !s.mgr.IngestWebhook(id, body) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no bound HTTP proxy device", "code": "not_found"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
