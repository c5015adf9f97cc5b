package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"device-engine/internal/engineerr"
)

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
	}{
		{"validation", engineerr.NewValidation("field", "reason"), http.StatusBadRequest, "validation_error"},
		{"not found", engineerr.NewNotFound("device", "x"), http.StatusNotFound, "not_found"},
		{"conflict", engineerr.NewConflict("device", "x", "dup"), http.StatusConflict, "conflict"},
		{"busy", engineerr.NewBusy("model", "x", "in use"), http.StatusConflict, "busy"},
		{"unavailable falls back to internal", engineerr.NewUnavailable("mqtt", errors.New("down")), http.StatusInternalServerError, "internal_error"},
		{"plain error falls back to internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, tag := errorStatus(tt.err)
			if status != tt.wantCode {
				t.Errorf("status = %d, want %d", status, tt.wantCode)
			}
			if tag != tt.wantTag {
				t.Errorf("tag = %q, want %q", tag, tt.wantTag)
			}
		})
	}
}

func TestWriteJSONSetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := rec.Body.String(); got == "" {
		t.Error("expected a JSON body, got empty response")
	}
}

func TestWriteErrorBodyShape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, engineerr.NewNotFound("device", "dev-1"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"code":"not_found"`) {
		t.Errorf("body %q missing code field", body)
	}
}
