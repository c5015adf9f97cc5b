package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"device-engine/internal/config"
	"device-engine/internal/generators"
	"device-engine/internal/manager"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvModelPath, dir)
	t.Setenv(config.EnvLedgerPath, filepath.Join(dir, "ledger.db"))

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	mgr := manager.New(cfg, nil, generators.NewHandlerRegistry(), nil)
	return NewServer(mgr, nil)
}

func deviceModelJSON(id string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"id":       id,
		"type":     "sensor",
		"protocol": "mqtt",
		"connection": map[string]interface{}{
			"broker": "tcp://localhost:1883",
			"port":   1883,
			"qos":    1,
		},
		"telemetry": []map[string]interface{}{
			{
				"name":       "temperature",
				"dataType":   "number",
				"intervalMs": 1000,
				"generator":  map[string]interface{}{"type": "constant", "value": 21.0},
			},
		},
	})
	return body
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateModelThenGetRoundTrip(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/models", bytes.NewReader(deviceModelJSON("sensor-1")))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/models status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/models/sensor-1", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/models/sensor-1 status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetModelNotFoundMapsTo404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	if body["code"] != "not_found" {
		t.Errorf("code = %q, want not_found", body["code"])
	}
}

func TestCreateDeviceForUnknownModelMapsToNotFound(t *testing.T) {
	s := newTestServer(t)

	reqBody, _ := json.Marshal(map[string]string{"modelId": "does-not-exist"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unregistered model, body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateDeviceThenListRoundTrip(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/models", bytes.NewReader(deviceModelJSON("sensor-1")))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/models status = %d, want 201", rec.Code)
	}

	reqBody, _ := json.Marshal(map[string]string{"modelId": "sensor-1", "deviceId": "dev-1"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/devices", bytes.NewReader(reqBody))
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/devices status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/devices status = %d, want 200", rec.Code)
	}
	var devices []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("response body is not a JSON array: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("listed %d devices, want 1", len(devices))
	}
}

func TestCreateDeviceMalformedBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateDeviceEmptyBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestBindDeviceEmptyBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/proxy-1/bind", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}
