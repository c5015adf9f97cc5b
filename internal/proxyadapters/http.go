package proxyadapters

import (
	"sync"
)

// HTTPWebhookRegistry is the dispatch table the Control Plane's webhook
// route consults: a POST to /api/v1/webhooks/{deviceId} is routed to the
// bound proxy device's onTelemetry callback. Binding/unbinding a device
// registers/deregisters its entry; nothing else is required to satisfy the
// HTTP proxy adapter contract (§4.6 — the webhook path is server-assigned,
// there is no outbound connection to own).
type HTTPWebhookRegistry struct {
	mu       sync.RWMutex
	handlers map[string]TelemetryCallback
}

// NewHTTPWebhookRegistry returns an empty registry.
func NewHTTPWebhookRegistry() *HTTPWebhookRegistry {
	return &HTTPWebhookRegistry{handlers: make(map[string]TelemetryCallback)}
}

// Bind registers a device's webhook callback, overwriting any prior one.
func (r *HTTPWebhookRegistry) Bind(deviceID string, cb TelemetryCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[deviceID] = cb
}

// Unbind removes a device's webhook callback.
func (r *HTTPWebhookRegistry) Unbind(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, deviceID)
}

// Dispatch routes a payload to its bound device's callback. ok is false if
// no HTTP proxy device is bound under deviceID.
func (r *HTTPWebhookRegistry) Dispatch(deviceID string, payload []byte) (ok bool) {
	r.mu.RLock()
	cb, ok := r.handlers[deviceID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	cb(payload)
	return true
}
