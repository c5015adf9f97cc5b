// Package device implements the two device kinds the manager schedules:
// the Virtual Device (one adapter plus one generator per attribute, each
// attribute on its own periodic task) and the Proxy Device (no scheduler,
// driven entirely by inbound payloads). Both report telemetry and
// lifecycle events to the shared metrics sink.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"device-engine/internal/adapters"
	"device-engine/internal/engineerr"
	"device-engine/internal/generators"
	"device-engine/internal/generators/customstate"
	"device-engine/internal/metrics"
	"device-engine/internal/models"
)

const maxConsecutiveFailures = 3

// StateChangeFunc notifies the owner (the manager) of a status transition
// the Virtual Device decided on its own, outside of a control-plane call —
// today that is only the failure-triggered RECONNECTING/RUNNING flip.
type StateChangeFunc func(status models.Status)

// publishMeta round-trips through the adapter's opaque meta parameter so
// the result callback can label the metrics point and lifecycle counters
// it caused, without the adapter knowing anything about telemetry shape.
type publishMeta struct {
	attrName string
	unit     string
	value    interface{}
}

// Virtual is a running simulated device: one adapter, one generator per
// telemetry attribute, one scheduler task per attribute.
type Virtual struct {
	device *models.Device
	model  *models.DeviceModel
	adapter adapters.Adapter
	gens    map[string]generators.Generator
	sink    *metrics.Sink
	logger  *logrus.Entry
	onState StateChangeFunc

	mu               sync.Mutex
	consecutiveFails int
	reconnecting     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVirtual builds a Virtual device. The adapter must already be
// constructed (protocol-specific wiring is the manager's job); NewVirtual
// only seeds generators and owns the scheduling loop.
func NewVirtual(dev *models.Device, model *models.DeviceModel, adapter adapters.Adapter, registry *generators.HandlerRegistry, ledger *customstate.Ledger, sink *metrics.Sink, logger *logrus.Entry, onState StateChangeFunc) (*Virtual, error) {
	v := &Virtual{
		device:  dev,
		model:   model,
		adapter: adapter,
		gens:    make(map[string]generators.Generator, len(model.Telemetry)),
		sink:    sink,
		logger:  logger,
		onState: onState,
	}
	for _, attr := range model.Telemetry {
		gen, err := generators.New(dev.ID, attr.Name, attr, registry)
		if err != nil {
			return nil, err
		}
		if attr.Generator.Type == "custom" && ledger != nil {
			gen = generators.WithLedger(gen, ledger)
		}
		v.gens[attr.Name] = gen
	}
	return v, nil
}

// Start connects the adapter and spawns one scheduler task per attribute.
// It blocks until connect succeeds or ctx/connectTimeout expires, per
// the engine's start-is-synchronous-to-connect contract; the attribute
// tasks themselves run in the background after that.
func (v *Virtual) Start(ctx context.Context) error {
	if err := v.adapter.Connect(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	for i := range v.model.Telemetry {
		attr := v.model.Telemetry[i]
		gen := v.gens[attr.Name]
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			v.runAttribute(runCtx, attr, gen)
		}()
	}
	v.writeEvent("started")
	return nil
}

// Stop cancels every attribute task and waits for them to exit, up to the
// caller's context deadline (the manager enforces gracefulStopTimeoutMs).
func (v *Virtual) Stop(ctx context.Context) error {
	if v.cancel != nil {
		v.cancel()
	}
	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	v.writeEvent("stopped")
	for _, gen := range v.gens {
		_ = gen.Close()
	}
	return v.adapter.Close()
}

// runAttribute is one telemetry attribute's independent periodic task. It
// keeps its own "next fire" clock as previousFire+intervalMs and skips any
// missed ticks rather than catching up, per the engine's no-burst-publish
// scheduling rule.
func (v *Virtual) runAttribute(ctx context.Context, attr models.AttributeSpec, gen generators.Generator) {
	interval := time.Duration(attr.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	nextFire := time.Now().Add(interval)

	timer := time.NewTimer(time.Until(nextFire))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now()
		value, err := gen.Next(now)
		switch {
		case errors.Is(err, generators.ErrNoValue):
			// nothing to publish this tick, not a generator failure
		case err != nil:
			if v.logger != nil {
				v.logger.WithError(err).WithField("attr", attr.Name).Warn("generator error, skipping tick")
			}
		default:
			v.publish(attr, value, now)
		}

		nextFire = nextFire.Add(interval)
		if !nextFire.After(now) {
			// ran late by more than one period: skip forward instead of
			// bursting through the missed ticks.
			nextFire = now.Add(interval)
		}
		timer.Reset(time.Until(nextFire))
	}
}

// publish serializes one attribute value per the §6 envelope and submits
// it to the adapter. The actual metrics point is written from the publish
// result callback, once the adapter confirms success.
func (v *Virtual) publish(attr models.AttributeSpec, value interface{}, now time.Time) {
	topic := resolveTopic(v.model.Connection.TopicPattern, v.device, now)
	payload, err := encodePayload(attr, value, v.device.ID, now)
	if err != nil {
		if v.logger != nil {
			v.logger.WithError(err).WithField("attr", attr.Name).Warn("payload encode failed")
		}
		return
	}
	meta := publishMeta{attrName: attr.Name, unit: attr.Unit, value: value}
	v.adapter.Submit(topic, payload, v.model.Connection.QoS, meta)
}

// OnPublishResult is the adapter's ResultCallback. It updates counters,
// writes the telemetry point on success, and applies the three-
// consecutive-failures reconnect rule on failure.
func (v *Virtual) OnPublishResult(res adapters.PublishResult) {
	meta, _ := res.Meta.(publishMeta)

	if res.Success {
		v.device.RecordPublishSuccess(res.Size)
		v.writeTelemetry(meta, time.Now())
		v.resetFailures()
		return
	}

	if v.logger != nil {
		v.logger.WithError(res.Err).WithField("attr", meta.attrName).Warn("publish failed")
	}
	v.recordFailure()
}

func (v *Virtual) recordFailure() {
	v.mu.Lock()
	v.consecutiveFails++
	trip := v.consecutiveFails >= maxConsecutiveFailures && !v.reconnecting
	if trip {
		v.reconnecting = true
	}
	v.mu.Unlock()

	if !trip {
		return
	}
	if v.onState != nil {
		v.onState(models.StatusReconnecting)
	}
	v.writeEvent("reconnecting")
	go v.reconnect()
}

func (v *Virtual) resetFailures() {
	v.mu.Lock()
	wasReconnecting := v.reconnecting
	v.consecutiveFails = 0
	v.reconnecting = false
	v.mu.Unlock()

	if wasReconnecting && v.onState != nil {
		v.onState(models.StatusRunning)
		v.writeEvent("reconnected")
	}
}

// reconnect re-attempts adapter.Connect once; this is a single blocking
// attempt, not a loop. Only the MQTT adapter retries on its own, with a
// background reconnect loop started when its connection is lost; the HTTP
// and CoAP adapters do not retry between publishes. The device returns to
// RUNNING on the next successful publish (see resetFailures).
func (v *Virtual) reconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := v.adapter.Connect(ctx); err != nil && v.logger != nil {
		v.logger.WithError(err).Warn("reconnect attempt failed")
	}
}

func (v *Virtual) writeTelemetry(meta publishMeta, now time.Time) {
	if v.sink == nil {
		return
	}
	tags := map[string]string{
		"deviceId": v.device.ID,
		"modelId":  v.device.ModelID,
		"groupId":  v.device.GroupID,
		"source":   string(models.SourceSimulated),
	}
	if meta.unit != "" {
		tags["unit"] = meta.unit
	}
	v.sink.Write(metrics.Point{
		Measurement: metrics.MeasurementTelemetry,
		Tags:        tags,
		Fields:      map[string]interface{}{meta.attrName: meta.value},
		Timestamp:   now,
	})
}

func (v *Virtual) writeEvent(eventType string) {
	if v.sink == nil {
		return
	}
	v.sink.Write(metrics.Point{
		Measurement: metrics.MeasurementDeviceEvents,
		Tags: map[string]string{
			"deviceId":  v.device.ID,
			"modelId":   v.device.ModelID,
			"eventType": eventType,
			"groupId":   v.device.GroupID,
			"source":    string(models.SourceSimulated),
		},
		Fields:    map[string]interface{}{"value": 1},
		Timestamp: time.Now(),
	})
}

// resolveTopic substitutes ${deviceId}/${groupId}/${modelId}/${timestamp}
// in a topic pattern at publish time.
func resolveTopic(pattern string, dev *models.Device, now time.Time) string {
	r := strings.NewReplacer(
		"${deviceId}", dev.ID,
		"${groupId}", dev.GroupID,
		"${modelId}", dev.ModelID,
		"${timestamp}", fmt.Sprintf("%d", now.UnixNano()),
	)
	return r.Replace(pattern)
}

// encodePayload builds the per-attribute publish body. Binary attributes
// emit the generator's raw bytes with no framing; everything else is the
// one-object-per-attribute JSON envelope from §4.2.
func encodePayload(attr models.AttributeSpec, value interface{}, deviceID string, now time.Time) ([]byte, error) {
	if attr.DataType == models.DataTypeBinary {
		if b, ok := value.([]byte); ok {
			return b, nil
		}
		return nil, engineerr.NewFatal(fmt.Sprintf("binary attribute %q produced non-[]byte value", attr.Name))
	}

	envelope := map[string]interface{}{
		attr.Name:   value,
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"deviceId":  deviceID,
	}
	if attr.Unit != "" {
		envelope["unit"] = attr.Unit
	}
	return json.Marshal(envelope)
}
