// Package generators implements the closed set of telemetry value
// producers: random, sequence, constant, replay, custom. Each is a tagged
// variant behind a small Generator interface, never a plugin registry on
// the hot path (per the engine's no-dynamic-dispatch design note).
package generators

import (
	"time"

	"device-engine/internal/engineerr"
	"device-engine/internal/models"
)

// Generator produces the next value for one telemetry attribute instance.
// Implementations own their state exclusively; nothing else touches it.
type Generator interface {
	Next(now time.Time) (interface{}, error)
	Close() error
}

// HandlerFunc is the signature a custom generator handler must satisfy.
// Handlers are required by contract to be pure functions of their inputs.
type HandlerFunc func(deviceID, attrName string, cfg models.GeneratorSpec, now time.Time) (interface{}, error)

// HandlerRegistry resolves custom handler names to functions the engine was
// compiled/linked with.
type HandlerRegistry struct {
	handlers map[string]HandlerFunc
}

// NewHandlerRegistry returns a registry pre-seeded with the built-in
// deterministic handlers.
func NewHandlerRegistry() *HandlerRegistry {
	r := &HandlerRegistry{handlers: make(map[string]HandlerFunc)}
	r.Register("checksum-echo", checksumEcho)
	r.Register("monotonic-counter", monotonicCounter)
	return r
}

// Register adds or overwrites a handler under a name.
func (r *HandlerRegistry) Register(name string, fn HandlerFunc) {
	r.handlers[name] = fn
}

// Lookup returns the handler for a name, or ok=false if unregistered.
func (r *HandlerRegistry) Lookup(name string) (HandlerFunc, bool) {
	fn, ok := r.handlers[name]
	return fn, ok
}

// New constructs the Generator variant named by spec.Type for one attribute
// instance. deviceID and attrName seed any PRNG-backed variant
// deterministically, per the engine's per-device-PRNG design note.
func New(deviceID, attrName string, attr models.AttributeSpec, registry *HandlerRegistry) (Generator, error) {
	spec := attr.Generator
	switch spec.Type {
	case "random":
		return newRandomGenerator(deviceID, attrName, attr, spec)
	case "sequence":
		return newSequenceGenerator(attr, spec)
	case "constant":
		return newConstantGenerator(spec)
	case "replay":
		return newReplayGenerator(spec)
	case "custom":
		return newCustomGenerator(deviceID, attrName, spec, registry)
	default:
		return nil, engineerr.NewValidation("generator.type", "unknown generator type: "+spec.Type)
	}
}
