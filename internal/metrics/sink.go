// Package metrics implements the engine's fire-and-forget time-series
// writer: batched, lossy under backpressure, and never a source of
// backpressure onto devices. The bounded buffer's drop-oldest eviction is
// grounded on the teacher's in-memory ring-buffer event store; the actual
// wire writer is a line-protocol-over-HTTP implementation (§DOMAIN STACK —
// no time-series client library exists in the retrieved corpus).
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Measurement names, bit-exact per §6.
const (
	MeasurementTelemetry    = "telemetry"
	MeasurementDeviceEvents = "device_events"
	MeasurementConnections  = "connections"
	MeasurementEngineStats  = "engine_stats"
)

// Point is one tagged time-series datum.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
	Timestamp   time.Time
}

// Writer sends a batch of points to the external time-series store.
type Writer interface {
	WriteBatch(points []Point) error
}

const (
	defaultBufferCapacity = 100_000
	defaultBatchSize      = 5_000
	defaultFlushInterval  = 1 * time.Second
	defaultShutdownFlush  = 5 * time.Second
)

// Sink is the process-wide metrics sink singleton. Safe for concurrent
// submission from every device and the Device Manager's stats loop.
type Sink struct {
	writer Writer
	logger *logrus.Entry

	mu   sync.Mutex
	buf  chan Point

	batchSize     int
	flushInterval time.Duration
	shutdownFlush time.Duration

	dropped uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Sink. Call Run to start its background flush loop.
func New(writer Writer, logger *logrus.Entry) *Sink {
	return &Sink{
		writer:        writer,
		logger:        logger,
		buf:           make(chan Point, defaultBufferCapacity),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		shutdownFlush: defaultShutdownFlush,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Write enqueues a point. Non-blocking: on a full buffer the oldest point
// is dropped and metricsDropped increments. Devices never stall here.
func (s *Sink) Write(p Point) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.buf <- p:
		return
	default:
	}

	select {
	case <-s.buf:
		atomic.AddUint64(&s.dropped, 1)
	default:
	}
	select {
	case s.buf <- p:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

// Dropped returns the running metricsDropped counter.
func (s *Sink) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Run starts the batching loop: flush at batchSize points or flushInterval,
// whichever comes first. Blocks until Shutdown is called.
func (s *Sink) Run() {
	defer close(s.doneCh)

	batch := make([]Point, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.flush(batch)
			s.drainAndFlush()
			return
		case p := <-s.buf:
			batch = append(batch, p)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// drainAndFlush empties any points still in the buffer at shutdown, within
// the configured shutdown flush deadline.
func (s *Sink) drainAndFlush() {
	deadline := time.After(s.shutdownFlush)
	batch := make([]Point, 0, s.batchSize)
	for {
		select {
		case p := <-s.buf:
			batch = append(batch, p)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-deadline:
			s.flush(batch)
			return
		default:
			s.flush(batch)
			return
		}
	}
}

// flush writes one batch, retrying failures with exponential backoff
// capped at 30s. Failures never propagate to callers of Write.
func (s *Sink) flush(batch []Point) {
	if len(batch) == 0 {
		return
	}
	points := make([]Point, len(batch))
	copy(points, batch)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		return s.writer.WriteBatch(points)
	}, b)

	if err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("points", len(points)).Warn("metrics batch write failed, dropping batch")
	}
}

// Shutdown stops the flush loop after draining the buffer, up to the
// configured shutdown deadline.
func (s *Sink) Shutdown() {
	close(s.stopCh)
	<-s.doneCh
}
