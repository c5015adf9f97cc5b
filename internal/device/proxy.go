package device

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"device-engine/internal/metrics"
	"device-engine/internal/models"
)

// Proxy is a device instance bound to an external source via a proxy
// adapter. It has no scheduler of its own — every update it makes is
// driven by OnTelemetry, called from the bound proxy adapter's receive
// path (MQTT subscription message or HTTP webhook delivery).
type Proxy struct {
	device *models.Device
	sink   *metrics.Sink
	logger *logrus.Entry
}

// NewProxy wraps a proxy device instance for telemetry ingestion.
func NewProxy(dev *models.Device, sink *metrics.Sink, logger *logrus.Entry) *Proxy {
	return &Proxy{device: dev, sink: sink, logger: logger}
}

// OnTelemetry handles one inbound payload. Per §4.3: non-JSON-object
// payloads are dropped and counted, never surfaced as an error to the
// adapter that delivered them.
func (p *Proxy) OnTelemetry(payload []byte) {
	now := time.Now()

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		p.device.RecordProxyDropped()
		if p.logger != nil {
			p.logger.WithError(err).Debug("dropped non-JSON proxy payload")
		}
		return
	}

	p.device.RecordTelemetryReceived(len(payload))

	if p.sink == nil {
		return
	}
	p.sink.Write(metrics.Point{
		Measurement: metrics.MeasurementTelemetry,
		Tags: map[string]string{
			"deviceId": p.device.ID,
			"modelId":  p.device.ModelID,
			"groupId":  p.device.GroupID,
			"source":   string(models.SourcePhysical),
		},
		Fields:    scalarFields(fields),
		Timestamp: now,
	})
}

// scalarFields keeps only the numeric/string/boolean top-level fields a
// proxied payload carries; nested objects/arrays aren't telemetry values.
func scalarFields(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch v.(type) {
		case float64, string, bool:
			out[k] = v
		}
	}
	return out
}
