package adapters

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"device-engine/internal/engineerr"
)

// MQTTConfig configures one device's persistent MQTT connection.
type MQTTConfig struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	UseTLS            bool
	KeepaliveSeconds  int
	QueueCapacity     int
	PublishTimeout    time.Duration
	ConnectTimeout    time.Duration
}

// MQTTAdapter is the egress MQTT protocol adapter: one persistent
// connection per simulated device, automatic reconnect with exponential
// backoff (initial 1s, cap 60s, jitter ±20%).
type MQTTAdapter struct {
	cfg    MQTTConfig
	client mqtt.Client
	logger *logrus.Entry

	queue *publishQueue

	connStateCB ConnStateCallback
	resultCB    ResultCallback

	mu         sync.RWMutex
	connected  bool
	closed     bool
	stopWorker chan struct{}

	messagesSent     uint64
	bytesSent        uint64
	droppedPublishes uint64
	publishFailures  uint64
}

// NewMQTTAdapter builds an MQTTAdapter. The returned adapter does not
// connect until Connect is called.
func NewMQTTAdapter(cfg MQTTConfig, logger *logrus.Entry, connStateCB ConnStateCallback, resultCB ResultCallback) *MQTTAdapter {
	a := &MQTTAdapter{
		cfg:         cfg,
		logger:      logger,
		connStateCB: connStateCB,
		resultCB:    resultCB,
		stopWorker:  make(chan struct{}),
	}
	a.queue = newPublishQueue(cfg.QueueCapacity, &a.droppedPublishes)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: false})
	}
	keepalive := cfg.KeepaliveSeconds
	if keepalive <= 0 {
		keepalive = 60
	}
	opts.SetKeepAlive(time.Duration(keepalive) * time.Second)
	opts.SetCleanSession(true)
	// We drive reconnect ourselves via backoff.Retry for exact jitter/cap
	// control instead of paho's built-in reconnect.
	opts.SetAutoReconnect(false)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		a.setConnected(true)
		if a.connStateCB != nil {
			a.connStateCB(true, nil)
		}
		if a.logger != nil {
			a.logger.Debug("mqtt connected")
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		a.setConnected(false)
		if a.connStateCB != nil {
			a.connStateCB(false, err)
		}
		if a.logger != nil {
			a.logger.WithError(err).Warn("mqtt connection lost, reconnecting")
		}
		go a.reconnectLoop()
	})

	a.client = mqtt.NewClient(opts)
	go a.worker()
	return a
}

func (a *MQTTAdapter) setConnected(v bool) {
	a.mu.Lock()
	a.connected = v
	a.mu.Unlock()
}

// Connect blocks until the broker accepts the connection or ctx expires.
func (a *MQTTAdapter) Connect(ctx context.Context) error {
	timeout := a.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token := a.client.Connect()
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
		if token.Error() != nil {
			return engineerr.NewUnavailable("mqtt", token.Error())
		}
		return nil
	case <-connectCtx.Done():
		return engineerr.NewTimeout("mqtt connect", connectCtx.Err())
	}
}

// reconnectLoop retries the connection with exponential backoff (1s..60s,
// ±20% jitter) until it succeeds or the adapter is closed.
func (a *MQTTAdapter) reconnectLoop() {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 60 * time.Second
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0 // retry forever

	attempt := func() error {
		a.mu.RLock()
		closed := a.closed
		a.mu.RUnlock()
		if closed {
			return nil
		}
		token := a.client.Connect()
		token.Wait()
		return token.Error()
	}

	_ = backoff.Retry(attempt, b)
}

// Submit enqueues a publish; non-blocking, drop-oldest on a full queue.
func (a *MQTTAdapter) Submit(topic string, payload []byte, qos int, meta interface{}) {
	a.queue.enqueue(queueItem{topic: topic, payload: payload, qos: qos, meta: meta})
}

func (a *MQTTAdapter) worker() {
	timeout := a.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	for {
		select {
		case <-a.stopWorker:
			return
		case item := <-a.queue.receive():
			a.publish(item, timeout)
		}
	}
}

func (a *MQTTAdapter) publish(item queueItem, timeout time.Duration) {
	if !a.IsConnected() {
		a.reportFailure(fmt.Errorf("mqtt not connected"), item.meta)
		return
	}

	token := a.client.Publish(item.topic, byte(item.qos), false, item.payload)

	if item.qos == 0 {
		// fire-and-forget
		a.reportSuccess(len(item.payload), item.meta)
		return
	}

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
		if token.Error() != nil {
			a.reportFailure(token.Error(), item.meta)
			return
		}
		a.reportSuccess(len(item.payload), item.meta)
	case <-time.After(timeout):
		a.reportFailure(fmt.Errorf("publish ack timed out after %s", timeout), item.meta)
	}
}

func (a *MQTTAdapter) reportSuccess(size int, meta interface{}) {
	atomic.AddUint64(&a.messagesSent, 1)
	atomic.AddUint64(&a.bytesSent, uint64(size))
	if a.resultCB != nil {
		a.resultCB(PublishResult{Success: true, Size: size, Meta: meta})
	}
}

func (a *MQTTAdapter) reportFailure(err error, meta interface{}) {
	atomic.AddUint64(&a.publishFailures, 1)
	if a.resultCB != nil {
		a.resultCB(PublishResult{Success: false, Err: err, Meta: meta})
	}
}

// Close disconnects and stops the publish worker.
func (a *MQTTAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stopWorker)
	a.client.Disconnect(250)
	return nil
}

func (a *MQTTAdapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

func (a *MQTTAdapter) Stats() Stats {
	return Stats{
		MessagesSent:     atomic.LoadUint64(&a.messagesSent),
		BytesSent:        atomic.LoadUint64(&a.bytesSent),
		DroppedPublishes: atomic.LoadUint64(&a.droppedPublishes),
		PublishFailures:  atomic.LoadUint64(&a.publishFailures),
	}
}
