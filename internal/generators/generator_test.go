package generators

import (
	"testing"
	"time"

	"device-engine/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestNewUnknownType(t *testing.T) {
	attr := models.AttributeSpec{Name: "x", Generator: models.GeneratorSpec{Type: "sine"}}
	_, err := New("dev-1", "x", attr, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown generator type")
	}
}

func TestConstantGenerator(t *testing.T) {
	attr := models.AttributeSpec{Name: "x", Generator: models.GeneratorSpec{Type: "constant", Value: 42.0}}
	gen, err := New("dev-1", "x", attr, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	now := time.Now()
	for i := 0; i < 5; i++ {
		v, err := gen.Next(now)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if v != 42.0 {
			t.Errorf("Next() = %v, want 42.0", v)
		}
	}
}

func TestSequenceGeneratorClampsWithoutWrap(t *testing.T) {
	attr := models.AttributeSpec{Name: "x", DataType: models.DataTypeNumber}
	spec := models.GeneratorSpec{
		Type:  "sequence",
		Start: floatPtr(0),
		Step:  floatPtr(10),
		Min:   floatPtr(0),
		Max:   floatPtr(25),
		Wrap:  false,
	}
	attr.Generator = spec
	gen, err := New("dev-1", "x", attr, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	var got []float64
	now := time.Now()
	for i := 0; i < 6; i++ {
		v, err := gen.Next(now)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		got = append(got, v.(float64))
	}

	want := []float64{0, 10, 20, 25, 25, 25}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tick %d: got %v, want %v (full sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestSequenceGeneratorWraps(t *testing.T) {
	attr := models.AttributeSpec{Name: "x", DataType: models.DataTypeNumber}
	attr.Generator = models.GeneratorSpec{
		Type:  "sequence",
		Start: floatPtr(0),
		Step:  floatPtr(10),
		Min:   floatPtr(0),
		Max:   floatPtr(25),
		Wrap:  true,
	}
	gen, err := New("dev-1", "x", attr, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	now := time.Now()
	var got []float64
	for i := 0; i < 4; i++ {
		v, _ := gen.Next(now)
		got = append(got, v.(float64))
	}
	want := []float64{0, 10, 20, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tick %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRandomGeneratorDeterministicPerAttribute(t *testing.T) {
	attr := models.AttributeSpec{Name: "temp", DataType: models.DataTypeNumber}
	attr.Generator = models.GeneratorSpec{Type: "random", Distribution: "uniform", Min: floatPtr(0), Max: floatPtr(100)}

	gen1, err := New("dev-1", "temp", attr, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	gen2, err := New("dev-1", "temp", attr, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	now := time.Now()
	for i := 0; i < 20; i++ {
		v1, _ := gen1.Next(now)
		v2, _ := gen2.Next(now)
		if v1 != v2 {
			t.Fatalf("tick %d: same (deviceId, attrName) produced divergent values %v vs %v", i, v1, v2)
		}
	}
}

func TestRandomGeneratorDiffersAcrossAttributes(t *testing.T) {
	attr := models.AttributeSpec{Name: "x", DataType: models.DataTypeNumber}
	attr.Generator = models.GeneratorSpec{Type: "random", Distribution: "uniform", Min: floatPtr(0), Max: floatPtr(1_000_000)}

	genA, _ := New("dev-1", "attr-a", attr, nil)
	genB, _ := New("dev-1", "attr-b", attr, nil)

	now := time.Now()
	vA, _ := genA.Next(now)
	vB, _ := genB.Next(now)
	if vA == vB {
		t.Fatal("different attrNames on the same device produced the same first sample; PRNG seed is not attribute-specific")
	}
}

func TestRandomGeneratorRespectsBounds(t *testing.T) {
	attr := models.AttributeSpec{Name: "x", DataType: models.DataTypeNumber}
	attr.Generator = models.GeneratorSpec{Type: "random", Distribution: "uniform", Min: floatPtr(10), Max: floatPtr(20)}
	gen, _ := New("dev-1", "x", attr, nil)

	now := time.Now()
	for i := 0; i < 200; i++ {
		v, _ := gen.Next(now)
		f := v.(float64)
		if f < 10 || f > 20 {
			t.Fatalf("sample %v outside configured bounds [10,20]", f)
		}
	}
}

func TestCustomGeneratorUnknownHandler(t *testing.T) {
	registry := NewHandlerRegistry()
	attr := models.AttributeSpec{Name: "x", Generator: models.GeneratorSpec{Type: "custom", Handler: "does-not-exist"}}
	_, err := New("dev-1", "x", attr, registry)
	if err == nil {
		t.Fatal("expected an error for an unregistered handler name")
	}
}

func TestCustomGeneratorRequiresRegistry(t *testing.T) {
	attr := models.AttributeSpec{Name: "x", Generator: models.GeneratorSpec{Type: "custom", Handler: "checksum-echo"}}
	_, err := New("dev-1", "x", attr, nil)
	if err == nil {
		t.Fatal("expected an error when no handler registry is supplied")
	}
}

func TestCustomGeneratorChecksumEchoIsPure(t *testing.T) {
	registry := NewHandlerRegistry()
	attr := models.AttributeSpec{Name: "x", Generator: models.GeneratorSpec{Type: "custom", Handler: "checksum-echo"}}
	gen, err := New("dev-1", "x", attr, registry)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	now := time.Now()
	v1, _ := gen.Next(now)
	v2, _ := gen.Next(now.Add(time.Hour))
	if v1 != v2 {
		t.Fatalf("checksum-echo depends only on (deviceId, attrName); got %v then %v", v1, v2)
	}
}

type countingLedger struct {
	calls map[string]int
}

func (l *countingLedger) RecordInvocation(deviceID, attrName string) error {
	if l.calls == nil {
		l.calls = make(map[string]int)
	}
	l.calls[deviceID+"/"+attrName]++
	return nil
}

func TestWithLedgerRecordsEveryInvocation(t *testing.T) {
	registry := NewHandlerRegistry()
	attr := models.AttributeSpec{Name: "x", Generator: models.GeneratorSpec{Type: "custom", Handler: "monotonic-counter"}}
	gen, err := New("dev-1", "x", attr, registry)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ledger := &countingLedger{}
	gen = WithLedger(gen, ledger)

	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := gen.Next(now); err != nil {
			t.Fatalf("Next() error: %v", err)
		}
	}

	if ledger.calls["dev-1/x"] != 3 {
		t.Errorf("expected 3 recorded invocations, got %d", ledger.calls["dev-1/x"])
	}
}
