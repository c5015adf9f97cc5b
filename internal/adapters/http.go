package adapters

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"device-engine/internal/engineerr"
)

// HTTPConfig configures the egress HTTP adapter.
type HTTPConfig struct {
	BaseURL        string
	Path           string
	QueueCapacity  int
	RequestTimeout time.Duration
}

// HTTPAdapter issues one POST per publish to baseUrl+path with a pooled
// transport; non-2xx responses are failures. No long-lived connection;
// "connected" tracks whether the last exchange succeeded.
type HTTPAdapter struct {
	cfg    HTTPConfig
	client *http.Client
	logger *logrus.Entry

	queue       *publishQueue
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

// NewHTTPAdapter builds an HTTPAdapter with a shared, pooled transport.
func NewHTTPAdapter(cfg HTTPConfig, logger *logrus.Entry, connStateCB ConnStateCallback, resultCB ResultCallback) *HTTPAdapter {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	a := &HTTPAdapter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:      logger,
		connStateCB: connStateCB,
		resultCB:    resultCB,
		stopWorker:  make(chan struct{}),
	}
	a.queue = newPublishQueue(cfg.QueueCapacity, &a.droppedPublishes)
	go a.worker()
	return a
}

// Connect performs a single probe POST with an empty body to confirm the
// endpoint is reachable before the device's scheduler starts.
func (a *HTTPAdapter) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url(a.cfg.Path), bytes.NewReader([]byte("{}")))
	if err != nil {
		return engineerr.NewFatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return engineerr.NewUnavailable("http", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return engineerr.NewUnavailable("http", fmt.Errorf("probe returned status %d", resp.StatusCode))
	}

	a.setConnected(true)
	return nil
}

func (a *HTTPAdapter) url(path string) string {
	if path == "" {
		return a.cfg.BaseURL
	}
	return a.cfg.BaseURL + path
}

func (a *HTTPAdapter) setConnected(v bool) {
	a.mu.Lock()
	changed := a.connected != v
	a.connected = v
	a.mu.Unlock()
	if changed && a.connStateCB != nil {
		a.connStateCB(v, nil)
	}
}

func (a *HTTPAdapter) Submit(path string, payload []byte, _ int, meta interface{}) {
	a.queue.enqueue(queueItem{topic: path, payload: payload, meta: meta})
}

func (a *HTTPAdapter) worker() {
	for {
		select {
		case <-a.stopWorker:
			return
		case item := <-a.queue.receive():
			a.publish(item)
		}
	}
}

func (a *HTTPAdapter) publish(item queueItem) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url(item.topic), bytes.NewReader(item.payload))
	if err != nil {
		a.reportFailure(err, item.meta)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.reportFailure(err, item.meta)
		a.setConnected(false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.reportFailure(fmt.Errorf("non-2xx status %d", resp.StatusCode), item.meta)
		a.setConnected(false)
		return
	}

	a.setConnected(true)
	atomic.AddUint64(&a.messagesSent, 1)
	atomic.AddUint64(&a.bytesSent, uint64(len(item.payload)))
	if a.resultCB != nil {
		a.resultCB(PublishResult{Success: true, Size: len(item.payload), Meta: item.meta})
	}
}

func (a *HTTPAdapter) reportFailure(err error, meta interface{}) {
	atomic.AddUint64(&a.publishFailures, 1)
	if a.resultCB != nil {
		a.resultCB(PublishResult{Success: false, Err: err, Meta: meta})
	}
}

func (a *HTTPAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	close(a.stopWorker)
	a.client.CloseIdleConnections()
	return nil
}

func (a *HTTPAdapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

func (a *HTTPAdapter) Stats() Stats {
	return Stats{
		MessagesSent:     atomic.LoadUint64(&a.messagesSent),
		BytesSent:        atomic.LoadUint64(&a.bytesSent),
		DroppedPublishes: atomic.LoadUint64(&a.droppedPublishes),
		PublishFailures:  atomic.LoadUint64(&a.publishFailures),
	}
}
