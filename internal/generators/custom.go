package generators

import (
	"time"

	"device-engine/internal/engineerr"
	"device-engine/internal/models"
)

// customGenerator resolves a handler name against the engine's compiled-in
// registry and invokes it with (deviceId, attrName, config, now) each tick.
type customGenerator struct {
	deviceID string
	attrName string
	spec     models.GeneratorSpec
	handler  HandlerFunc
	ledger   InvocationLedger
}

// InvocationLedger records custom-generator invocation counts so they
// remain auditable across process restarts during long-running load tests.
// A nil ledger is a valid no-op (auditing is best-effort, never load-bearing).
type InvocationLedger interface {
	RecordInvocation(deviceID, attrName string) error
}

func newCustomGenerator(deviceID, attrName string, spec models.GeneratorSpec, registry *HandlerRegistry) (Generator, error) {
	if registry == nil {
		return nil, engineerr.NewFatal("custom generator requires a handler registry")
	}
	fn, ok := registry.Lookup(spec.Handler)
	if !ok {
		return nil, engineerr.NewValidation("generator.handler", "no handler registered: "+spec.Handler)
	}
	return &customGenerator{deviceID: deviceID, attrName: attrName, spec: spec, handler: fn}, nil
}

// WithLedger attaches an invocation ledger to an already-constructed custom
// generator. Called by the device scheduler after generator creation so the
// generator package itself stays free of storage wiring.
func WithLedger(g Generator, ledger InvocationLedger) Generator {
	if cg, ok := g.(*customGenerator); ok {
		cg.ledger = ledger
	}
	return g
}

func (g *customGenerator) Next(now time.Time) (interface{}, error) {
	v, err := g.handler(g.deviceID, g.attrName, g.spec, now)
	if err != nil {
		return nil, err
	}
	if g.ledger != nil {
		_ = g.ledger.RecordInvocation(g.deviceID, g.attrName)
	}
	return v, nil
}

func (g *customGenerator) Close() error { return nil }

// checksumEcho is a built-in deterministic custom handler: emits a stable
// numeric value derived only from its inputs, proving the pure-function
// contract custom handlers must satisfy.
func checksumEcho(deviceID, attrName string, _ models.GeneratorSpec, now time.Time) (interface{}, error) {
	sum := int64(0)
	for _, b := range deviceID + attrName {
		sum += int64(b)
	}
	return sum % 1000, nil
}

// monotonicCounter is a built-in custom handler producing whole seconds
// since the Unix epoch at each tick, for testing custom-handler wiring
// without any external state.
func monotonicCounter(_ string, _ string, _ models.GeneratorSpec, now time.Time) (interface{}, error) {
	return now.Unix(), nil
}
