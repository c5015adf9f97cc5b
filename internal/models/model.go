// Package models defines the engine's data model: device models, device
// instances, groups, and proxy bindings, plus the validation rules the
// Device Manager enforces at registration and creation time.
package models

import (
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"device-engine/internal/engineerr"
)

// DeviceType enumerates the kinds of device a model can describe.
type DeviceType string

const (
	DeviceTypeSensor   DeviceType = "sensor"
	DeviceTypeGateway  DeviceType = "gateway"
	DeviceTypeActuator DeviceType = "actuator"
	DeviceTypeCustom   DeviceType = "custom"
	DeviceTypeProxy    DeviceType = "proxy"
)

// Protocol enumerates the egress/ingress protocols a model can use.
type Protocol string

const (
	ProtocolMQTT Protocol = "mqtt"
	ProtocolCoAP Protocol = "coap"
	ProtocolHTTP Protocol = "http"
)

// DataType enumerates the supported telemetry attribute value types.
type DataType string

const (
	DataTypeNumber  DataType = "number"
	DataTypeInteger DataType = "integer"
	DataTypeBoolean DataType = "boolean"
	DataTypeString  DataType = "string"
	DataTypeBinary  DataType = "binary"
)

// Source tags whether a device's telemetry is generated or forwarded.
type Source string

const (
	SourceSimulated Source = "simulated"
	SourcePhysical  Source = "physical"
)

// Status is a device's lifecycle state (§4.1 state machine).
type Status string

const (
	StatusCreated      Status = "CREATED"
	StatusStarting     Status = "STARTING"
	StatusRunning      Status = "RUNNING"
	StatusStopping     Status = "STOPPING"
	StatusStopped      Status = "STOPPED"
	StatusReconnecting Status = "RECONNECTING"
	StatusError        Status = "ERROR"
	StatusDeleted      Status = "DELETED"
)

// ConnectionState tracks a device's transport-level connectivity,
// independent of its lifecycle Status.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
)

var modelIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Connection carries broker/transport settings for a model.
type Connection struct {
	Broker           string `json:"broker"`
	Port             int    `json:"port"`
	QoS              int    `json:"qos"`
	KeepaliveSeconds int    `json:"keepaliveSeconds"`
	ClientIDPattern  string `json:"clientIdPattern"`
	TopicPattern     string `json:"topicPattern"`
	ResourcePath     string `json:"resourcePath,omitempty"` // CoAP
	BaseURL          string `json:"baseUrl,omitempty"`      // HTTP
	Path             string `json:"path,omitempty"`         // HTTP
}

// GeneratorSpec describes how a telemetry attribute's values are produced.
// Only the fields relevant to Type are meaningful; validated per-variant.
type GeneratorSpec struct {
	Type         string      `json:"type"` // random | sequence | constant | replay | custom
	Distribution string      `json:"distribution,omitempty"`
	Min          *float64    `json:"min,omitempty"`
	Max          *float64    `json:"max,omitempty"`
	Mean         *float64    `json:"mean,omitempty"`
	StdDev       *float64    `json:"stddev,omitempty"`
	Rate         *float64    `json:"rate,omitempty"`
	Start        *float64    `json:"start,omitempty"`
	Step         *float64    `json:"step,omitempty"`
	Wrap         bool        `json:"wrap,omitempty"`
	Value        interface{} `json:"value,omitempty"`
	FilePath     string      `json:"filePath,omitempty"`
	Format       string      `json:"format,omitempty"` // csv | jsonl
	Column       string      `json:"column,omitempty"`
	Loop         bool        `json:"loop,omitempty"`
	Handler      string      `json:"handler,omitempty"`
	Precision    *int        `json:"precision,omitempty"`
}

var validGeneratorTypes = map[string]bool{
	"random": true, "sequence": true, "constant": true, "replay": true, "custom": true,
}

// AttributeSpec describes one named telemetry field within a model.
type AttributeSpec struct {
	Name       string        `json:"name"`
	DataType   DataType      `json:"dataType"`
	Unit       string        `json:"unit,omitempty"`
	Generator  GeneratorSpec `json:"generator"`
	IntervalMs int64         `json:"intervalMs"`
}

// DeviceModel is a registered device template. Immutable while referenced.
type DeviceModel struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	Type       DeviceType      `json:"type"`
	Protocol   Protocol        `json:"protocol"`
	Connection Connection      `json:"connection"`
	Telemetry  []AttributeSpec `json:"telemetry"`
	Commands   interface{}     `json:"commands,omitempty"`
	Behaviors  interface{}     `json:"behaviors,omitempty"`
	Metadata   interface{}     `json:"metadata,omitempty"`
}

// Validate enforces the §3 invariants for a DeviceModel.
func (m *DeviceModel) Validate() error {
	if !modelIDPattern.MatchString(m.ID) {
		return engineerr.NewValidation("id", "must match ^[a-z][a-z0-9-]*$")
	}
	switch m.Type {
	case DeviceTypeSensor, DeviceTypeGateway, DeviceTypeActuator, DeviceTypeCustom, DeviceTypeProxy:
	default:
		return engineerr.NewValidation("type", "unknown device type: "+string(m.Type))
	}
	switch m.Protocol {
	case ProtocolMQTT, ProtocolCoAP, ProtocolHTTP:
	default:
		return engineerr.NewValidation("protocol", "unknown protocol: "+string(m.Protocol))
	}
	if m.Connection.Port < 1 || m.Connection.Port > 65535 {
		return engineerr.NewValidation("connection.port", "must be in [1,65535]")
	}
	if m.Connection.QoS < 0 || m.Connection.QoS > 2 {
		return engineerr.NewValidation("connection.qos", "must be 0, 1 or 2")
	}

	if m.Type == DeviceTypeProxy {
		if len(m.Telemetry) != 0 {
			return engineerr.NewValidation("telemetry", "must be empty for type=proxy")
		}
		if m.Protocol != ProtocolMQTT && m.Protocol != ProtocolHTTP {
			return engineerr.NewValidation("protocol", "proxy models support only mqtt or http")
		}
		return nil
	}

	for i := range m.Telemetry {
		attr := &m.Telemetry[i]
		if attr.Name == "" {
			return engineerr.NewValidation("telemetry[].name", "must not be empty")
		}
		if attr.IntervalMs < 1 {
			return engineerr.NewValidation("telemetry[].intervalMs", "must be >= 1")
		}
		switch attr.DataType {
		case DataTypeNumber, DataTypeInteger, DataTypeBoolean, DataTypeString, DataTypeBinary:
		default:
			return engineerr.NewValidation("telemetry[].dataType", "unknown data type: "+string(attr.DataType))
		}
		if !validGeneratorTypes[attr.Generator.Type] {
			return engineerr.NewValidation("telemetry[].generator.type", "unknown generator type: "+attr.Generator.Type)
		}
	}
	return nil
}

// SourceForType derives the mandatory source tag from a model's type.
func SourceForType(t DeviceType) Source {
	if t == DeviceTypeProxy {
		return SourcePhysical
	}
	return SourceSimulated
}

// BindingConfig is the proxy-only ingress binding for a device.
type BindingConfig struct {
	Protocol    Protocol `json:"protocol"`
	Broker      string   `json:"broker,omitempty"`
	Port        int      `json:"port,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	QoS         int      `json:"qos,omitempty"`
	Username    string   `json:"username,omitempty"`
	PasswordRef string   `json:"passwordRef,omitempty"`
	WebhookPath string   `json:"webhookPath,omitempty"`
}

// Validate enforces the BindingConfig invariants.
func (b *BindingConfig) Validate() error {
	switch b.Protocol {
	case ProtocolMQTT:
		if b.Broker == "" || b.Port == 0 || b.Topic == "" {
			return engineerr.NewValidation("binding", "mqtt bindings require broker, port and topic")
		}
	case ProtocolHTTP:
		// no extra fields required; webhook path is server-assigned.
	default:
		return engineerr.NewValidation("binding.protocol", "must be mqtt or http")
	}
	return nil
}

// Device is a live device instance, simulated or physical.
type Device struct {
	ID              string          `json:"id"`
	ModelID         string          `json:"modelId"`
	GroupID         string          `json:"groupId,omitempty"`
	Source          Source          `json:"source"`
	Status          Status          `json:"status"`
	ConnectionState ConnectionState `json:"connectionState"`

	MessagesSent    uint64 `json:"messagesSent"`
	BytesSent       uint64 `json:"bytesSent"`
	LastTelemetryAt *time.Time `json:"lastTelemetryAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`

	// Proxy-only fields.
	Binding             *BindingConfig `json:"binding,omitempty"`
	MessagesReceived    uint64         `json:"messagesReceived,omitempty"`
	BytesReceived       uint64         `json:"bytesReceived,omitempty"`
	ProxyDroppedPayloads uint64        `json:"proxyDroppedPayloads,omitempty"`

	// telemetryMu guards LastTelemetryAt only; the uint64 counters above
	// are mutated and read via sync/atomic instead. Both the scheduler
	// goroutine (Virtual) and the proxy ingress path (Proxy) write these
	// fields while the Manager's stats/metrics endpoints read them
	// concurrently, per §5.
	telemetryMu sync.Mutex
}

// IsProxy reports whether this device instance is a proxy (physical) device.
func (d *Device) IsProxy() bool {
	return d.Source == SourcePhysical
}

// RecordPublishSuccess updates the egress counters after a successful
// publish by a Virtual device's adapter.
func (d *Device) RecordPublishSuccess(size int) {
	atomic.AddUint64(&d.MessagesSent, 1)
	atomic.AddUint64(&d.BytesSent, uint64(size))
	d.touchLastTelemetry()
}

// SentCounters returns a consistent snapshot of the egress counters.
func (d *Device) SentCounters() (messages, bytes uint64) {
	return atomic.LoadUint64(&d.MessagesSent), atomic.LoadUint64(&d.BytesSent)
}

// RecordTelemetryReceived updates the ingress counters after a Proxy
// device accepts an inbound payload.
func (d *Device) RecordTelemetryReceived(size int) {
	atomic.AddUint64(&d.MessagesReceived, 1)
	atomic.AddUint64(&d.BytesReceived, uint64(size))
	d.touchLastTelemetry()
}

// ReceivedCounters returns a consistent snapshot of the ingress counters.
func (d *Device) ReceivedCounters() (messages, bytes uint64) {
	return atomic.LoadUint64(&d.MessagesReceived), atomic.LoadUint64(&d.BytesReceived)
}

// RecordProxyDropped counts one inbound payload a Proxy device rejected.
func (d *Device) RecordProxyDropped() {
	atomic.AddUint64(&d.ProxyDroppedPayloads, 1)
}

func (d *Device) touchLastTelemetry() {
	now := time.Now()
	d.telemetryMu.Lock()
	d.LastTelemetryAt = &now
	d.telemetryMu.Unlock()
}

// LastTelemetry returns the last-telemetry timestamp under the same lock
// touchLastTelemetry writes it with.
func (d *Device) LastTelemetry() *time.Time {
	d.telemetryMu.Lock()
	defer d.telemetryMu.Unlock()
	return d.LastTelemetryAt
}

// Group is a named collection of devices created from a single model.
type Group struct {
	ID            string   `json:"id"`
	ModelID       string   `json:"modelId"`
	ExpectedCount int      `json:"expectedCount"`
	IDPattern     string   `json:"idPattern"`
	MemberIDs     []string `json:"memberIds"`
}

// LaunchConfig controls the timing discipline of a group start.
type LaunchConfig struct {
	Strategy     string `json:"strategy"` // immediate | linear | batch | exponential
	DelayMs      int64  `json:"delayMs"`
	BatchSize    int    `json:"batchSize"`
	MaxDelayMs   int64  `json:"maxDelayMs"`
	ExponentBase float64 `json:"exponentBase"`
}

// Normalize fills in the §4.1 defaults for any zero-valued fields.
func (c *LaunchConfig) Normalize() {
	if c.Strategy == "" {
		c.Strategy = "immediate"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxDelayMs <= 0 {
		c.MaxDelayMs = 60_000
	}
	if c.ExponentBase <= 0 {
		c.ExponentBase = 1.5
	}
}

// Validate checks a LaunchConfig against §4.1 and the boundary behaviors
// in §8 (exponentBase == 1.0 degenerates to linear, which is legal).
func (c *LaunchConfig) Validate() error {
	switch c.Strategy {
	case "immediate", "linear", "batch", "exponential":
	default:
		return engineerr.NewValidation("strategy", "unknown launch strategy: "+c.Strategy)
	}
	if c.DelayMs < 0 {
		return engineerr.NewValidation("delayMs", "must be >= 0")
	}
	return nil
}

// DropoutConfig controls a group's programmed-failure orchestration.
type DropoutConfig struct {
	Strategy         string  `json:"strategy"` // immediate | linear | exponential | random
	Count            int     `json:"count,omitempty"`
	Percentage       float64 `json:"percentage,omitempty"`
	DelayMs          int64   `json:"delayMs"`
	MaxDelayMs       int64   `json:"maxDelayMs"`
	ExponentBase     float64 `json:"exponentBase"`
	DurationMs       int64   `json:"durationMs"`
	Reconnect        bool    `json:"reconnect"`
	ReconnectDelayMs int64   `json:"reconnectDelayMs"`
}

// Normalize fills in defaults, mirroring LaunchConfig.Normalize.
func (c *DropoutConfig) Normalize() {
	if c.Strategy == "" {
		c.Strategy = "immediate"
	}
	if c.ExponentBase <= 0 {
		c.ExponentBase = 1.5
	}
	if c.ReconnectDelayMs <= 0 {
		c.ReconnectDelayMs = 1000
	}
}

// Validate checks a DropoutConfig against §4.1.
func (c *DropoutConfig) Validate() error {
	switch c.Strategy {
	case "immediate", "linear", "exponential", "random":
	default:
		return engineerr.NewValidation("strategy", "unknown dropout strategy: "+c.Strategy)
	}
	if c.Count <= 0 && c.Percentage <= 0 {
		return engineerr.NewValidation("count|percentage", "one of count or percentage must be positive")
	}
	return nil
}

// Stats is the cheap snapshot returned by getStats().
type Stats struct {
	TotalDevices      int   `json:"totalDevices"`
	RunningDevices    int   `json:"runningDevices"`
	RunningSimulated  int   `json:"runningSimulated"`
	RunningPhysical   int   `json:"runningPhysical"`
	TotalProxyDevices int   `json:"totalProxyDevices"`
	TotalGroups       int   `json:"totalGroups"`
	TotalModels       int   `json:"totalModels"`
	TotalMessagesSent uint64 `json:"totalMessagesSent"`
	TotalBytesSent    uint64 `json:"totalBytesSent"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}
