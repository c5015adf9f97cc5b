package generators

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"device-engine/internal/models"
)

// randomGenerator samples uniform, normal or exponential distributions from
// a PRNG seeded deterministically from (deviceId, attrName) at device
// start, per the engine's per-device-PRNG design note.
type randomGenerator struct {
	rng          *rand.Rand
	distribution string
	min, max     *float64
	mean         float64
	stddev       float64
	rate         float64
	integer      bool
	precision    int
}

func seedFor(deviceID, attrName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(deviceID))
	_, _ = h.Write([]byte("\x00"))
	_, _ = h.Write([]byte(attrName))
	return int64(h.Sum64())
}

func newRandomGenerator(deviceID, attrName string, attr models.AttributeSpec, spec models.GeneratorSpec) (Generator, error) {
	g := &randomGenerator{
		rng:          rand.New(rand.NewSource(seedFor(deviceID, attrName))),
		distribution: spec.Distribution,
		min:          spec.Min,
		max:          spec.Max,
		integer:      attr.DataType == models.DataTypeInteger,
		precision:    2,
	}
	if spec.Precision != nil {
		g.precision = *spec.Precision
	}
	if g.distribution == "" {
		g.distribution = "uniform"
	}
	if spec.Mean != nil {
		g.mean = *spec.Mean
	}
	if spec.StdDev != nil {
		g.stddev = *spec.StdDev
	}
	if spec.Rate != nil {
		g.rate = *spec.Rate
	} else if g.mean != 0 {
		g.rate = 1 / g.mean
	}
	return g, nil
}

func (g *randomGenerator) Next(_ time.Time) (interface{}, error) {
	var v float64
	switch g.distribution {
	case "normal":
		v = g.rng.NormFloat64()*g.stddev + g.mean
		v = clamp(v, g.min, g.max)
	case "exponential":
		rate := g.rate
		if rate == 0 {
			rate = 1
		}
		v = g.rng.ExpFloat64() / rate
		v = clamp(v, g.min, g.max)
	default: // uniform
		lo, hi := 0.0, 1.0
		if g.min != nil {
			lo = *g.min
		}
		if g.max != nil {
			hi = *g.max
		}
		if hi < lo {
			hi = lo
		}
		v = lo + g.rng.Float64()*(hi-lo)
	}

	if g.integer {
		v = roundHalfToEven(v)
		v = clamp(v, g.min, g.max)
		return int64(v), nil
	}
	return roundTo(v, g.precision), nil
}

func (g *randomGenerator) Close() error { return nil }

func clamp(v float64, min, max *float64) float64 {
	if min != nil && v < *min {
		v = *min
	}
	if max != nil && v > *max {
		v = *max
	}
	return v
}

func roundHalfToEven(v float64) float64 {
	return math.RoundToEven(v)
}

func roundTo(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
