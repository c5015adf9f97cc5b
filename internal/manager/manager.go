// Package manager implements the Device Manager: the authoritative
// in-memory catalog of models, devices and groups, and the state machine
// that drives them through the protocol adapters and generators in
// internal/device. A single coarse lock guards catalog membership; each
// device additionally has its own lock serializing its lifecycle
// transitions, so a slow connect on one device never blocks catalog reads
// or other devices' transitions.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"device-engine/internal/adapters"
	"device-engine/internal/config"
	"device-engine/internal/device"
	"device-engine/internal/engineerr"
	"device-engine/internal/generators"
	"device-engine/internal/generators/customstate"
	"device-engine/internal/idgen"
	"device-engine/internal/metrics"
	"device-engine/internal/models"
	"device-engine/internal/proxyadapters"
)

const gracefulStopTimeout = 5 * time.Second

// fieldLogger returns a derived entry tagged with key/value, or nil if the
// manager was built without a logger. Callers must nil-check the result
// before use, same as m.logger itself.
func (m *Manager) fieldLogger(key, value string) *logrus.Entry {
	if m.logger == nil {
		return nil
	}
	return m.logger.WithField(key, value)
}

// deviceEntry is one catalog row plus everything the running device needs
// to be stopped, restarted or deleted later.
type deviceEntry struct {
	mu sync.Mutex // serializes this device's lifecycle transitions

	dev   *models.Device
	model *models.DeviceModel

	virtual  *device.Virtual
	proxy    *device.Proxy
	adapter  adapters.Adapter
	proxyAdp proxyIngress
}

// proxyIngress is satisfied by the MQTT proxy adapter; the HTTP proxy
// variant has no connection to close, it only registers into the
// webhook dispatch table.
type proxyIngress interface {
	Close() error
}

// Manager owns the catalog and every running device/group.
type Manager struct {
	cfg    *config.Config
	logger *logrus.Entry
	sink   *metrics.Sink
	registry *generators.HandlerRegistry
	webhooks *proxyadapters.HTTPWebhookRegistry

	mu      sync.RWMutex
	modelsByID  map[string]*models.DeviceModel
	devices     map[string]*deviceEntry
	groups      map[string]*models.Group
	launchers   map[string]*groupLauncher

	idSeen *bloom.BloomFilter
	ledger *customstate.Ledger

	startedAt time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New builds a Manager. Call LoadModels then Run to bring it to life.
//
// It opens the custom-generator invocation ledger on a best-effort basis:
// a failure to open it (missing directory, locked file) is logged and
// left nil, never fatal — auditing custom handler calls is not load-bearing
// for the engine's core contract.
func New(cfg *config.Config, sink *metrics.Sink, registry *generators.HandlerRegistry, logger *logrus.Entry) *Manager {
	ledger, err := customstate.Open(cfg.LedgerPath())
	if err != nil {
		if logger != nil {
			logger.WithError(err).Warn("custom generator invocation ledger unavailable, auditing disabled")
		}
		ledger = nil
	}

	return &Manager{
		cfg:        cfg,
		logger:     logger,
		sink:       sink,
		registry:   registry,
		webhooks:   proxyadapters.NewHTTPWebhookRegistry(),
		modelsByID: make(map[string]*models.DeviceModel),
		devices:    make(map[string]*deviceEntry),
		groups:     make(map[string]*models.Group),
		launchers:  make(map[string]*groupLauncher),
		idSeen:     bloom.NewWithEstimates(1_000_000, 0.001),
		ledger:     ledger,
		startedAt:  time.Now(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Webhooks exposes the HTTP proxy dispatch table to the Control Plane.
func (m *Manager) Webhooks() *proxyadapters.HTTPWebhookRegistry { return m.webhooks }

// ---- models ----

// LoadModels scans the configured model directory at startup, per §6.
func (m *Manager) LoadModels() error {
	dir := m.cfg.ModelPath()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading model directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			if l := m.fieldLogger("file", e.Name()); l != nil {
				l.WithError(err).Warn("skipping unreadable model file")
			}
			continue
		}
		var mdl models.DeviceModel
		if err := json.Unmarshal(raw, &mdl); err != nil {
			if l := m.fieldLogger("file", e.Name()); l != nil {
				l.WithError(err).Warn("skipping malformed model file")
			}
			continue
		}
		m.modelsByID[mdl.ID] = &mdl
	}
	return nil
}

// RegisterModel validates, persists and catalogs a model. Re-registering
// the identical spec is a no-op success; a colliding id with a different
// spec is a Conflict.
func (m *Manager) RegisterModel(mdl models.DeviceModel) (*models.DeviceModel, error) {
	if err := mdl.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.modelsByID[mdl.ID]; ok {
		m.mu.Unlock()
		if modelsEqual(existing, &mdl) {
			return existing, nil
		}
		return nil, engineerr.NewConflict("model", mdl.ID, "id already registered with a different spec")
	}
	m.modelsByID[mdl.ID] = &mdl
	m.mu.Unlock()

	if err := m.persistModel(&mdl); err != nil {
		if l := m.fieldLogger("model", mdl.ID); l != nil {
			l.WithError(err).Warn("model registered in memory but not persisted")
		}
	}
	return &mdl, nil
}

func modelsEqual(a, b *models.DeviceModel) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}

// persistModel writes the model JSON via write-then-rename, so a reader
// scanning the directory never observes a partial file.
func (m *Manager) persistModel(mdl *models.DeviceModel) error {
	dir := m.cfg.ModelPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	final := filepath.Join(dir, mdl.ID+".json")
	tmp := filepath.Join(dir, "."+mdl.ID+".json.tmp-"+uuid.NewString())

	raw, err := json.MarshalIndent(mdl, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// ListModels returns every registered model.
func (m *Manager) ListModels() []*models.DeviceModel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.DeviceModel, 0, len(m.modelsByID))
	for _, mdl := range m.modelsByID {
		out = append(out, mdl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetModel looks up a model by id.
func (m *Manager) GetModel(id string) (*models.DeviceModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mdl, ok := m.modelsByID[id]
	if !ok {
		return nil, engineerr.NewNotFound("model", id)
	}
	return mdl, nil
}

// DeleteModel removes a model, failing with Busy if any device references it.
func (m *Manager) DeleteModel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.modelsByID[id]; !ok {
		return engineerr.NewNotFound("model", id)
	}
	for _, e := range m.devices {
		if e.dev.ModelID == id {
			return engineerr.NewBusy("model", id, "model has devices referencing it")
		}
	}
	delete(m.modelsByID, id)
	_ = os.Remove(filepath.Join(m.cfg.ModelPath(), id+".json"))
	return nil
}

// ---- devices ----

// CreateDevice instantiates one device from a model in CREATED state.
func (m *Manager) CreateDevice(modelID, requestedID, groupID string) (*models.Device, error) {
	mdl, err := m.GetModel(modelID)
	if err != nil {
		return nil, err
	}

	id := requestedID
	if id == "" {
		id = idgen.DeviceID(modelID)
	}

	m.mu.Lock()
	// The bloom filter is a pure fast path: a miss proves no collision
	// without touching the map; a hit still falls through to the real
	// check below since bloom filters allow false positives.
	if m.idSeen.TestString(id) {
		if _, exists := m.devices[id]; exists {
			m.mu.Unlock()
			return nil, engineerr.NewConflict("device", id, "device id already exists")
		}
	}
	dev := &models.Device{
		ID:              id,
		ModelID:         modelID,
		GroupID:         groupID,
		Source:          models.SourceForType(mdl.Type),
		Status:          models.StatusCreated,
		ConnectionState: models.ConnDisconnected,
		CreatedAt:       time.Now(),
	}
	m.devices[id] = &deviceEntry{dev: dev, model: mdl}
	m.idSeen.AddString(id)
	m.mu.Unlock()

	return dev, nil
}

// GetDevice looks up a device by id.
func (m *Manager) GetDevice(id string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.devices[id]
	if !ok {
		return nil, engineerr.NewNotFound("device", id)
	}
	return e.dev, nil
}

// ListDevices returns every device, optionally filtered by modelId, groupId
// or status, with limit/offset pagination.
func (m *Manager) ListDevices(modelID, groupID, status string, limit, offset int) []*models.Device {
	m.mu.RLock()
	all := make([]*models.Device, 0, len(m.devices))
	for _, e := range m.devices {
		d := e.dev
		if modelID != "" && d.ModelID != modelID {
			continue
		}
		if groupID != "" && d.GroupID != groupID {
			continue
		}
		if status != "" && string(d.Status) != status {
			continue
		}
		all = append(all, d)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset > 0 {
		if offset >= len(all) {
			return []*models.Device{}
		}
		all = all[offset:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (m *Manager) entry(id string) (*deviceEntry, error) {
	m.mu.RLock()
	e, ok := m.devices[id]
	m.mu.RUnlock()
	if !ok {
		return nil, engineerr.NewNotFound("device", id)
	}
	return e, nil
}

// StartDevice drives CREATED/STOPPED → STARTING → RUNNING|ERROR for a
// simulated device. Proxy devices have no independent start/stop: binding
// drives their status (see BindDevice/UnbindDevice).
func (m *Manager) StartDevice(ctx context.Context, id string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.dev.IsProxy() {
		e.mu.Unlock()
		return engineerr.NewValidation("id", "proxy devices are started by binding, not startDevice")
	}
	switch e.dev.Status {
	case models.StatusRunning, models.StatusStarting:
		e.mu.Unlock()
		return nil // idempotent
	case models.StatusStopping:
		e.mu.Unlock()
		return engineerr.NewConflict("device", id, "device is stopping")
	}
	e.dev.Status = models.StatusStarting
	e.mu.Unlock()

	vd, adapter, err := m.buildVirtual(e)
	if err != nil {
		e.mu.Lock()
		e.dev.Status = models.StatusError
		e.mu.Unlock()
		m.writeDeviceEvent(e.dev, "error")
		return err
	}

	if err := vd.Start(ctx); err != nil {
		e.mu.Lock()
		e.dev.Status = models.StatusError
		e.mu.Unlock()
		m.writeDeviceEvent(e.dev, "error")
		return err
	}

	e.mu.Lock()
	e.virtual = vd
	e.adapter = adapter
	e.dev.Status = models.StatusRunning
	e.dev.ConnectionState = models.ConnConnected
	now := time.Now()
	e.dev.StartedAt = &now
	e.mu.Unlock()
	return nil
}

// StopDevice drives RUNNING/RECONNECTING → STOPPING → STOPPED for a
// simulated device. Proxy devices are stopped by unbinding.
func (m *Manager) StopDevice(ctx context.Context, id string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.dev.IsProxy() {
		e.mu.Unlock()
		return engineerr.NewValidation("id", "proxy devices are stopped by unbinding, not stopDevice")
	}
	switch e.dev.Status {
	case models.StatusStopped, models.StatusCreated:
		e.mu.Unlock()
		return nil
	}
	vd := e.virtual
	e.dev.Status = models.StatusStopping
	e.mu.Unlock()

	if vd != nil {
		stopCtx, cancel := context.WithTimeout(ctx, gracefulStopTimeout)
		_ = vd.Stop(stopCtx)
		cancel()
	}

	e.mu.Lock()
	e.dev.Status = models.StatusStopped
	e.dev.ConnectionState = models.ConnDisconnected
	e.virtual = nil
	e.adapter = nil
	e.mu.Unlock()
	return nil
}

// DeleteDevice stops (or unbinds) the device if necessary and removes it
// from the catalog.
func (m *Manager) DeleteDevice(ctx context.Context, id string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	if e.dev.IsProxy() {
		if err := m.UnbindDevice(id); err != nil {
			return err
		}
	} else if err := m.StopDevice(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return engineerr.NewNotFound("device", id)
	}
	delete(m.devices, id)
	return nil
}

// buildVirtual constructs the protocol adapter and Virtual device for a
// simulated device entry. The adapter's result callback closes over a
// pointer assigned immediately below, before the adapter can possibly be
// asked to publish anything.
func (m *Manager) buildVirtual(e *deviceEntry) (*device.Virtual, adapters.Adapter, error) {
	var vd *device.Virtual
	resultCB := func(r adapters.PublishResult) {
		if vd != nil {
			vd.OnPublishResult(r)
		}
	}
	connStateCB := func(connected bool, err error) {
		m.writeConnectionEvent(e.dev, e.model.Protocol, connected)
	}

	adapter, err := m.buildAdapter(e.dev, e.model, connStateCB, resultCB)
	if err != nil {
		return nil, nil, err
	}

	onState := func(status models.Status) {
		e.mu.Lock()
		e.dev.Status = status
		e.mu.Unlock()
	}

	vd, err = device.NewVirtual(e.dev, e.model, adapter, m.registry, m.ledger, m.sink, m.logger, onState)
	if err != nil {
		_ = adapter.Close()
		return nil, nil, err
	}
	return vd, adapter, nil
}

func (m *Manager) buildAdapter(dev *models.Device, mdl *models.DeviceModel, connStateCB adapters.ConnStateCallback, resultCB adapters.ResultCallback) (adapters.Adapter, error) {
	conn := mdl.Connection
	switch mdl.Protocol {
	case models.ProtocolMQTT:
		clientID := interpolateClientID(conn.ClientIDPattern, mdl.ID, dev.ID)
		broker := conn.Broker
		if broker == "" {
			broker = m.cfg.MQTTBroker()
		}
		return adapters.NewMQTTAdapter(adapters.MQTTConfig{
			Broker:           broker,
			ClientID:         clientID,
			Username:         m.cfg.MQTTUsername(),
			Password:         m.cfg.MQTTPassword(),
			KeepaliveSeconds: conn.KeepaliveSeconds,
		}, m.fieldLogger("device", dev.ID), connStateCB, resultCB), nil

	case models.ProtocolCoAP:
		target := conn.Broker
		if target == "" {
			target = m.cfg.CoAPAddr()
		}
		return adapters.NewCoAPAdapter(adapters.CoAPConfig{
			Addr:         target,
			ResourcePath: conn.ResourcePath,
		}, m.fieldLogger("device", dev.ID), connStateCB, resultCB)

	case models.ProtocolHTTP:
		base := conn.BaseURL
		if base == "" {
			base = m.cfg.HTTPAdapterBaseURL()
		}
		return adapters.NewHTTPAdapter(adapters.HTTPConfig{
			BaseURL: base,
			Path:    conn.Path,
		}, m.fieldLogger("device", dev.ID), connStateCB, resultCB), nil

	default:
		return nil, engineerr.NewValidation("protocol", "unsupported protocol: "+string(mdl.Protocol))
	}
}

func interpolateClientID(pattern, modelID, deviceID string) string {
	if pattern == "" {
		pattern = "{modelId}-{deviceId}"
	}
	r := strings.NewReplacer("{modelId}", modelID, "{deviceId}", deviceID)
	return r.Replace(pattern)
}

func (m *Manager) writeDeviceEvent(dev *models.Device, eventType string) {
	if m.sink == nil {
		return
	}
	m.sink.Write(metrics.Point{
		Measurement: metrics.MeasurementDeviceEvents,
		Tags: map[string]string{
			"deviceId":  dev.ID,
			"modelId":   dev.ModelID,
			"eventType": eventType,
			"groupId":   dev.GroupID,
			"source":    string(dev.Source),
		},
		Fields:    map[string]interface{}{"value": 1},
		Timestamp: time.Now(),
	})
}

func (m *Manager) writeConnectionEvent(dev *models.Device, protocol models.Protocol, connected bool) {
	if m.sink == nil {
		return
	}
	m.sink.Write(metrics.Point{
		Measurement: metrics.MeasurementConnections,
		Tags: map[string]string{
			"deviceId": dev.ID,
			"protocol": string(protocol),
			"source":   string(dev.Source),
		},
		Fields:    map[string]interface{}{"connected": connected, "latencyMs": 0},
		Timestamp: time.Now(),
	})
}

// ---- proxy binding ----

// BindDevice attaches an ingress proxy adapter to a physical device and
// drives it CREATED/STOPPED → STARTING → RUNNING|ERROR. Binding is a proxy
// device's only path to RUNNING; StartDevice never touches one.
func (m *Manager) BindDevice(ctx context.Context, id string, binding models.BindingConfig) (webhookURL string, err error) {
	if err := binding.Validate(); err != nil {
		return "", err
	}
	e, err := m.entry(id)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dev.IsProxy() {
		return "", engineerr.NewValidation("id", "binding requires a proxy device")
	}
	if e.dev.Status == models.StatusRunning {
		return "", engineerr.NewConflict("device", id, "device already bound")
	}

	e.dev.Status = models.StatusStarting

	px := device.NewProxy(e.dev, m.sink, m.fieldLogger("device", id))
	e.proxy = px

	switch binding.Protocol {
	case models.ProtocolMQTT:
		adp := proxyadapters.NewMQTTProxyAdapter(proxyadapters.MQTTProxyConfig{
			Broker:   binding.Broker,
			ClientID: "proxy-" + id,
			Username: binding.Username,
			Topic:    binding.Topic,
			QoS:      binding.QoS,
		}, m.fieldLogger("device", id), px.OnTelemetry)
		if err := adp.Connect(ctx); err != nil {
			e.dev.Status = models.StatusError
			m.writeConnectionEvent(e.dev, binding.Protocol, false)
			return "", err
		}
		e.proxyAdp = adp

	case models.ProtocolHTTP:
		path := binding.WebhookPath
		if path == "" {
			path = "/api/v1/webhooks/" + id
		}
		binding.WebhookPath = path
		webhookURL = path
		m.webhooks.Bind(id, px.OnTelemetry)
	}

	e.dev.Binding = &binding
	e.dev.ConnectionState = models.ConnConnected
	now := time.Now()
	e.dev.StartedAt = &now
	e.dev.Status = models.StatusRunning
	m.writeConnectionEvent(e.dev, binding.Protocol, true)
	m.writeDeviceEvent(e.dev, "bound")
	return webhookURL, nil
}

// UnbindDevice tears down a proxy device's ingress and drives it to
// STOPPED. StopDevice never touches a proxy device's status.
func (m *Manager) UnbindDevice(id string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dev.IsProxy() {
		return engineerr.NewValidation("id", "unbind requires a proxy device")
	}
	if e.dev.Status == models.StatusStopped {
		return nil
	}
	e.dev.Status = models.StatusStopping

	protocol := models.Protocol("")
	if e.dev.Binding != nil {
		protocol = e.dev.Binding.Protocol
	}
	if e.proxyAdp != nil {
		_ = e.proxyAdp.Close()
		e.proxyAdp = nil
	}
	m.webhooks.Unbind(id)
	e.dev.Binding = nil
	e.dev.ConnectionState = models.ConnDisconnected
	e.dev.Status = models.StatusStopped
	m.writeConnectionEvent(e.dev, protocol, false)
	m.writeDeviceEvent(e.dev, "unbound")
	return nil
}

// GetBinding returns a proxy device's current binding, if any.
func (m *Manager) GetBinding(id string) (*models.BindingConfig, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev.Binding, nil
}

// IngestWebhook routes an HTTP webhook body to its bound proxy device.
func (m *Manager) IngestWebhook(id string, payload []byte) bool {
	return m.webhooks.Dispatch(id, payload)
}

// ---- stats ----

// GetStats computes the cheap engine-wide snapshot from running counters.
func (m *Manager) GetStats() models.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats models.Stats
	stats.TotalModels = len(m.modelsByID)
	stats.TotalGroups = len(m.groups)
	stats.TotalDevices = len(m.devices)
	stats.UptimeSeconds = time.Since(m.startedAt).Seconds()

	for _, e := range m.devices {
		if e.dev.IsProxy() {
			stats.TotalProxyDevices++
		}
		if e.dev.Status == models.StatusRunning || e.dev.Status == models.StatusReconnecting {
			stats.RunningDevices++
			if e.dev.IsProxy() {
				stats.RunningPhysical++
			} else {
				stats.RunningSimulated++
			}
		}
		msgs, bytes := e.dev.SentCounters()
		stats.TotalMessagesSent += msgs
		stats.TotalBytesSent += bytes
	}
	return stats
}

// Run starts the background 5s engine_stats emission loop. Blocks until
// Shutdown is called.
func (m *Manager) Run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.emitEngineStats()
		}
	}
}

func (m *Manager) emitEngineStats() {
	if m.sink == nil {
		return
	}
	stats := m.GetStats()
	m.sink.Write(metrics.Point{
		Measurement: metrics.MeasurementEngineStats,
		Tags:        map[string]string{},
		Fields: map[string]interface{}{
			"activeDevices":   stats.RunningDevices,
			"activeSimulated": stats.RunningSimulated,
			"activePhysical":  stats.RunningPhysical,
			"totalMessages":   stats.TotalMessagesSent,
			"totalBytes":      stats.TotalBytesSent,
			"activeGroups":    stats.TotalGroups,
		},
		Timestamp: time.Now(),
	})
}

// Shutdown cancels every group launcher, stops every device and halts the
// background stats loop. It does not flush the metrics sink — that is the
// caller's responsibility, since the sink outlives the manager during a
// graceful drain.
func (m *Manager) Shutdown(ctx context.Context) {
	close(m.stopCh)
	<-m.doneCh

	m.mu.RLock()
	for _, gl := range m.launchers {
		gl.cancel()
	}
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			e, err := m.entry(id)
			if err != nil {
				return
			}
			if e.dev.IsProxy() {
				_ = m.UnbindDevice(id)
				return
			}
			_ = m.StopDevice(ctx, id)
		}(id)
	}
	wg.Wait()

	if m.ledger != nil {
		_ = m.ledger.Close()
	}
}
