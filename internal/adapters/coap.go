package adapters

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"device-engine/internal/engineerr"
)

// CoAPConfig configures the minimal CoAP-over-UDP POST exchange this
// adapter performs. No CoAP client library exists anywhere in the
// retrieved corpus (confirmed by a pack-wide search); this is a justified
// stdlib fallback per DESIGN.md, built directly against RFC 7252's wire
// format for the one message type the engine needs: a POST.
type CoAPConfig struct {
	Addr                string // host:port of the CoAP server
	ResourcePath        string
	Confirmable         bool
	MaxConsecutiveFails int
	QueueCapacity       int
	ExchangeTimeout     time.Duration
}

const (
	coapVersion    = 1
	coapTypeCON    = 0
	coapTypeNON    = 1
	coapTypeACK    = 2
	coapCodePOST   = 0x02
	coapOptionPath = 11
)

// CoAPAdapter issues a confirmable or non-confirmable POST per publish.
// There is no long-lived connection: "connected" is true after the first
// successful exchange until MaxConsecutiveFails consecutive failures.
type CoAPAdapter struct {
	cfg    CoAPConfig
	conn   *net.UDPConn
	logger *logrus.Entry

	queue       *publishQueue
	connStateCB ConnStateCallback
	resultCB    ResultCallback

	mu                sync.RWMutex
	connected         bool
	consecutiveFails  int
	closed            bool
	stopWorker        chan struct{}

	messagesSent     uint64
	bytesSent        uint64
	droppedPublishes uint64
	publishFailures  uint64
}

// NewCoAPAdapter builds a CoAPAdapter bound to a remote address.
func NewCoAPAdapter(cfg CoAPConfig, logger *logrus.Entry, connStateCB ConnStateCallback, resultCB ResultCallback) (*CoAPAdapter, error) {
	raddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, engineerr.NewValidation("coap.addr", err.Error())
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, engineerr.NewUnavailable("coap", err)
	}
	if cfg.MaxConsecutiveFails <= 0 {
		cfg.MaxConsecutiveFails = 5
	}
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = 5 * time.Second
	}

	a := &CoAPAdapter{
		cfg:         cfg,
		conn:        conn,
		logger:      logger,
		connStateCB: connStateCB,
		resultCB:    resultCB,
		stopWorker:  make(chan struct{}),
	}
	a.queue = newPublishQueue(cfg.QueueCapacity, &a.droppedPublishes)
	go a.worker()
	return a, nil
}

// Connect performs the first exchange (confirmable or not, per
// cfg.Confirmable; a non-confirmable one succeeds once the datagram is
// sent), which per §4.5 establishes the adapter's "connected" state for CoAP.
func (a *CoAPAdapter) Connect(ctx context.Context) error {
	deadline := time.Now().Add(a.cfg.ExchangeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := a.exchange(a.cfg.ResourcePath, nil, deadline); err != nil {
		return engineerr.NewUnavailable("coap", err)
	}
	a.setConnected(true, nil)
	return nil
}

func (a *CoAPAdapter) setConnected(v bool, err error) {
	a.mu.Lock()
	changed := a.connected != v
	a.connected = v
	if v {
		a.consecutiveFails = 0
	}
	a.mu.Unlock()
	if changed && a.connStateCB != nil {
		a.connStateCB(v, err)
	}
}

func (a *CoAPAdapter) Submit(path string, payload []byte, _ int, meta interface{}) {
	if path == "" {
		path = a.cfg.ResourcePath
	}
	a.queue.enqueue(queueItem{topic: path, payload: payload, meta: meta})
}

func (a *CoAPAdapter) worker() {
	for {
		select {
		case <-a.stopWorker:
			return
		case item := <-a.queue.receive():
			deadline := time.Now().Add(a.cfg.ExchangeTimeout)
			err := a.exchange(item.topic, item.payload, deadline)
			a.recordOutcome(err, len(item.payload), item.meta)
		}
	}
}

func (a *CoAPAdapter) recordOutcome(err error, size int, meta interface{}) {
	if err == nil {
		atomic.AddUint64(&a.messagesSent, 1)
		atomic.AddUint64(&a.bytesSent, uint64(size))
		a.setConnected(true, nil)
		if a.resultCB != nil {
			a.resultCB(PublishResult{Success: true, Size: size, Meta: meta})
		}
		return
	}

	atomic.AddUint64(&a.publishFailures, 1)
	a.mu.Lock()
	a.consecutiveFails++
	fails := a.consecutiveFails
	a.mu.Unlock()
	if fails >= a.cfg.MaxConsecutiveFails {
		a.setConnected(false, err)
	}
	if a.resultCB != nil {
		a.resultCB(PublishResult{Success: false, Err: err, Meta: meta})
	}
}

// exchange sends one POST datagram and waits for its ACK (confirmable) or
// returns immediately after send (non-confirmable).
func (a *CoAPAdapter) exchange(path string, payload []byte, deadline time.Time) error {
	msgType := coapTypeNON
	if a.cfg.Confirmable {
		msgType = coapTypeCON
	}
	messageID := uint16(rand.Intn(65536))
	token := make([]byte, 2)
	_, _ = rand.Read(token)

	pkt := encodeCoAPMessage(msgType, coapCodePOST, messageID, token, path, payload)

	if err := a.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := a.conn.Write(pkt); err != nil {
		return err
	}

	if msgType == coapTypeNON {
		return nil
	}

	if err := a.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	buf := make([]byte, 1500)
	n, err := a.conn.Read(buf)
	if err != nil {
		return engineerr.NewTimeout("coap exchange", err)
	}
	if n < 4 {
		return fmt.Errorf("coap: short ack")
	}
	ackType := (buf[0] >> 4) & 0x03
	if ackType != coapTypeACK {
		return fmt.Errorf("coap: unexpected response type %d", ackType)
	}
	return nil
}

func encodeCoAPMessage(msgType, code int, messageID uint16, token []byte, path string, payload []byte) []byte {
	buf := make([]byte, 0, 64+len(payload))

	header := byte(coapVersion<<6) | byte(msgType<<4) | byte(len(token))
	buf = append(buf, header, byte(code))
	idBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(idBytes, messageID)
	buf = append(buf, idBytes...)
	buf = append(buf, token...)

	prevOption := 0
	for _, segment := range splitPath(path) {
		delta := coapOptionPath - prevOption
		prevOption = coapOptionPath
		length := len(segment)
		if length >= 13 {
			buf = append(buf, byte(delta<<4)|13)
			buf = append(buf, byte(length-13))
		} else {
			buf = append(buf, byte(delta<<4)|byte(length))
		}
		buf = append(buf, []byte(segment)...)
	}

	if len(payload) > 0 {
		buf = append(buf, 0xFF) // payload marker
		buf = append(buf, payload...)
	}
	return buf
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}

func (a *CoAPAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	close(a.stopWorker)
	return a.conn.Close()
}

func (a *CoAPAdapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

func (a *CoAPAdapter) Stats() Stats {
	return Stats{
		MessagesSent:     atomic.LoadUint64(&a.messagesSent),
		BytesSent:        atomic.LoadUint64(&a.bytesSent),
		DroppedPublishes: atomic.LoadUint64(&a.droppedPublishes),
		PublishFailures:  atomic.LoadUint64(&a.publishFailures),
	}
}
