package generators

import (
	"time"

	"device-engine/internal/models"
)

// sequenceGenerator emits a running scalar that advances by step each tick,
// wrapping or clamping-and-stopping at its bounds.
type sequenceGenerator struct {
	v       float64
	step    float64
	min     *float64
	max     *float64
	wrap    bool
	integer bool
	stopped bool
}

func newSequenceGenerator(attr models.AttributeSpec, spec models.GeneratorSpec) (Generator, error) {
	g := &sequenceGenerator{
		step:    1,
		wrap:    spec.Wrap,
		integer: attr.DataType == models.DataTypeInteger,
		min:     spec.Min,
		max:     spec.Max,
	}
	if spec.Start != nil {
		g.v = *spec.Start
	}
	if spec.Step != nil {
		g.step = *spec.Step
	}
	return g, nil
}

func (g *sequenceGenerator) Next(_ time.Time) (interface{}, error) {
	current := g.v

	if !g.stopped {
		next := g.v + g.step
		if g.min != nil && g.max != nil {
			if g.step >= 0 && next > *g.max {
				if g.wrap {
					next = *g.min
				} else {
					next = *g.max
					g.stopped = true
				}
			} else if g.step < 0 && next < *g.min {
				if g.wrap {
					next = *g.max
				} else {
					next = *g.min
					g.stopped = true
				}
			}
		}
		g.v = next
	}

	if g.integer {
		return int64(roundHalfToEven(current)), nil
	}
	return current, nil
}

func (g *sequenceGenerator) Close() error { return nil }
