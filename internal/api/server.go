// Package api implements the Control Plane: a thin chi-routed façade that
// decodes requests, calls the Device Manager, and encodes responses. No
// business logic lives here beyond request parameter parsing — every
// contract is enforced by the manager and its collaborators.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"device-engine/internal/engineerr"
	"device-engine/internal/manager"
)

// Server wraps the chi router bound to one Manager.
type Server struct {
	router *chi.Mux
	mgr    *manager.Manager
	logger *logrus.Entry
}

// NewServer builds a Server with every route registered.
func NewServer(mgr *manager.Manager, logger *logrus.Entry) *Server {
	s := &Server{router: chi.NewRouter(), mgr: mgr, logger: logger}
	s.setupRoutes()
	return s
}

// Router returns the chi router for http.ListenAndServe.
func (s *Server) Router() *chi.Mux { return s.router }

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.health)
	r.Get("/api/v1/stats", s.getStats)

	r.Route("/api/v1/models", func(r chi.Router) {
		r.Get("/", s.listModels)
		r.Post("/", s.createModel)
		r.Get("/{id}", s.getModel)
		r.Delete("/{id}", s.deleteModel)
	})

	r.Route("/api/v1/devices", func(r chi.Router) {
		r.Get("/", s.listDevices)
		r.Post("/", s.createDevice)
		r.Get("/{id}", s.getDevice)
		r.Delete("/{id}", s.deleteDevice)
		r.Post("/{id}/start", s.startDevice)
		r.Post("/{id}/stop", s.stopDevice)
		r.Get("/{id}/metrics", s.deviceMetrics)
		r.Post("/{id}/bind", s.bindDevice)
		r.Post("/{id}/unbind", s.unbindDevice)
		r.Get("/{id}/binding", s.getBinding)
	})

	r.Route("/api/v1/groups", func(r chi.Router) {
		r.Post("/", s.createGroup)
		r.Post("/{id}/start", s.startGroup)
		r.Post("/{id}/stop", s.stopGroup)
		r.Post("/{id}/dropout", s.dropoutGroup)
		r.Delete("/{id}", s.deleteGroup)
	})

	// The webhook route is the sole runtime-dispatched route: its target
	// proxy device is resolved at request time through the manager's
	// webhook registry, not through a route registered per device.
	r.Post("/api/v1/webhooks/{id}", s.webhook)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps a typed engine error to its §6 status code and body
// shape {error, code}.
func writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func errorStatus(err error) (int, string) {
	var (
		valErr  *engineerr.ValidationError
		nfErr   *engineerr.NotFoundError
		confErr *engineerr.ConflictError
		busyErr *engineerr.BusyError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &nfErr):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &confErr):
		return http.StatusConflict, "conflict"
	case errors.As(err, &busyErr):
		return http.StatusConflict, "busy"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return engineerr.NewValidation("body", "request body is required")
		}
		return engineerr.NewValidation("body", "malformed JSON: "+err.Error())
	}
	return nil
}
