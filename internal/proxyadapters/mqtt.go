// Package proxyadapters implements the ingress side of proxy devices: MQTT
// subscribe and HTTP webhook. Each invokes a device's onTelemetry callback
// per received payload. The MQTT one reconnects after a lost connection
// the same way the egress MQTT adapter does; the HTTP webhook holds no
// connection of its own.
package proxyadapters

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"device-engine/internal/engineerr"
)

// TelemetryCallback is invoked once per received ingress payload.
type TelemetryCallback func(payload []byte)

// MQTTProxyConfig configures an MQTT proxy adapter's subscription.
type MQTTProxyConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      int
}

// MQTTProxyAdapter subscribes to a topic on an external broker and invokes
// a device's onTelemetry callback for each message received.
type MQTTProxyAdapter struct {
	cfg      MQTTProxyConfig
	client   mqtt.Client
	logger   *logrus.Entry
	callback TelemetryCallback

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewMQTTProxyAdapter builds an adapter that has not yet connected.
func NewMQTTProxyAdapter(cfg MQTTProxyConfig, logger *logrus.Entry, callback TelemetryCallback) *MQTTProxyAdapter {
	a := &MQTTProxyAdapter{cfg: cfg, logger: logger, callback: callback}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		a.setConnected(true)
		token := c.Subscribe(cfg.Topic, byte(cfg.QoS), func(_ mqtt.Client, msg mqtt.Message) {
			a.callback(msg.Payload())
		})
		token.Wait()
		if a.logger != nil {
			a.logger.WithField("topic", cfg.Topic).Debug("proxy subscription active")
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		a.setConnected(false)
		if a.logger != nil {
			a.logger.WithError(err).Warn("proxy mqtt connection lost, reconnecting")
		}
		go a.reconnectLoop()
	})

	a.client = mqtt.NewClient(opts)
	return a
}

func (a *MQTTProxyAdapter) setConnected(v bool) {
	a.mu.Lock()
	a.connected = v
	a.mu.Unlock()
}

// Connect blocks until the broker accepts the connection or ctx expires.
// The topic subscription is made by the on-connect handler.
func (a *MQTTProxyAdapter) Connect(ctx context.Context) error {
	token := a.client.Connect()
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		if token.Error() != nil {
			return engineerr.NewUnavailable("mqtt-proxy", token.Error())
		}
		return nil
	case <-ctx.Done():
		return engineerr.NewTimeout("mqtt-proxy connect", ctx.Err())
	}
}

func (a *MQTTProxyAdapter) reconnectLoop() {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 60 * time.Second
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0

	_ = backoff.Retry(func() error {
		a.mu.RLock()
		closed := a.closed
		a.mu.RUnlock()
		if closed {
			return nil
		}
		token := a.client.Connect()
		token.Wait()
		return token.Error()
	}, b)
}

// Close unsubscribes and disconnects.
func (a *MQTTProxyAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.client.IsConnected() {
		a.client.Unsubscribe(a.cfg.Topic)
	}
	a.client.Disconnect(250)
	return nil
}

func (a *MQTTProxyAdapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}
