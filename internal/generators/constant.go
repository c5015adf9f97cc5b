package generators

import (
	"time"

	"device-engine/internal/models"
)

// constantGenerator always emits the configured value. Stateless.
type constantGenerator struct {
	value interface{}
}

func newConstantGenerator(spec models.GeneratorSpec) (Generator, error) {
	return &constantGenerator{value: spec.Value}, nil
}

func (g *constantGenerator) Next(_ time.Time) (interface{}, error) {
	return g.value, nil
}

func (g *constantGenerator) Close() error { return nil }
