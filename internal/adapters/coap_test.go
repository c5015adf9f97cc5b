package adapters

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestSplitPathTrimsEmptySegments(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/a/b", []string{"a", "b"}},
		{"a/b/", []string{"a", "b"}},
		{"", nil},
		{"single", []string{"single"}},
	}
	for _, tt := range tests {
		got := splitPath(tt.path)
		if len(got) != len(tt.want) {
			t.Fatalf("splitPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitPath(%q)[%d] = %q, want %q", tt.path, i, got[i], tt.want[i])
			}
		}
	}
}

func TestEncodeCoAPMessageNonConfirmablePOST(t *testing.T) {
	pkt := encodeCoAPMessage(coapTypeNON, coapCodePOST, 1, nil, "temp", nil)
	want := []byte{0x50, 0x02, 0x00, 0x01, 0xB4, 't', 'e', 'm', 'p'}
	if len(pkt) != len(want) {
		t.Fatalf("len(pkt) = %d, want %d (pkt=% x)", len(pkt), len(want), pkt)
	}
	for i := range want {
		if pkt[i] != want[i] {
			t.Errorf("pkt[%d] = %#x, want %#x", i, pkt[i], want[i])
		}
	}
}

func TestEncodeCoAPMessageAppendsPayloadMarker(t *testing.T) {
	pkt := encodeCoAPMessage(coapTypeCON, coapCodePOST, 7, nil, "", []byte{0xAA, 0xBB})
	if len(pkt) < 2 {
		t.Fatalf("packet too short: % x", pkt)
	}
	marker := pkt[len(pkt)-3]
	if marker != 0xFF {
		t.Errorf("expected payload marker 0xFF before payload, got %#x", marker)
	}
	if pkt[len(pkt)-2] != 0xAA || pkt[len(pkt)-1] != 0xBB {
		t.Errorf("payload tail = % x, want aa bb", pkt[len(pkt)-2:])
	}
}

func TestEncodeCoAPMessageLongSegmentUsesExtendedLength(t *testing.T) {
	// RFC 7252 §3.1: an option length >= 13 is encoded as nibble 13
	// followed by one extended-length byte of (actual length - 13).
	segment := "this-segment-is-long" // 20 bytes
	pkt := encodeCoAPMessage(coapTypeNON, coapCodePOST, 1, nil, segment, nil)

	optHeader := pkt[4]
	if nibble := optHeader & 0x0F; nibble != 13 {
		t.Fatalf("option length nibble = %d, want 13 for a %d-byte segment", nibble, len(segment))
	}
	extLen := pkt[5]
	if int(extLen) != len(segment)-13 {
		t.Errorf("extended length byte = %d, want %d", extLen, len(segment)-13)
	}
	gotSegment := string(pkt[6 : 6+len(segment)])
	if gotSegment != segment {
		t.Errorf("segment bytes = %q, want %q", gotSegment, segment)
	}
}

// localCoAPServer starts a UDP listener that ACKs every confirmable POST it
// receives, for exercising CoAPAdapter without a real CoAP implementation.
func localCoAPServer(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, raddr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_ = n
			// Reply with a minimal ACK: version/type/token-length byte
			// encodes type=ACK, everything else is irrelevant to exchange().
			ack := []byte{0x60, 0x00, 0x00, 0x00}
			_, _ = conn.WriteToUDP(ack, raddr)
		}
	}()
	return conn.LocalAddr().String()
}

func TestCoAPAdapterConnectSucceedsOnACK(t *testing.T) {
	addr := localCoAPServer(t)
	a, err := NewCoAPAdapter(CoAPConfig{Addr: addr, ResourcePath: "telemetry", Confirmable: true}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCoAPAdapter() error: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if !a.IsConnected() {
		t.Error("expected IsConnected() true after a successful ACK exchange")
	}
}

func TestCoAPAdapterSubmitNonConfirmableReportsSuccess(t *testing.T) {
	addr := localCoAPServer(t)
	results := make(chan PublishResult, 1)
	a, err := NewCoAPAdapter(CoAPConfig{Addr: addr, ResourcePath: "telemetry", Confirmable: false}, nil, nil, func(r PublishResult) { results <- r })
	if err != nil {
		t.Fatalf("NewCoAPAdapter() error: %v", err)
	}
	defer a.Close()

	a.Submit("", []byte("payload"), 0, "meta")

	select {
	case r := <-results:
		if !r.Success {
			t.Fatalf("expected success for a non-confirmable send, got %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a publish result")
	}
}

// ackOnceServer ACKs exactly the first datagram it receives (so Connect
// succeeds) and silently drops everything after, so later confirmable
// exchanges reliably time out without depending on real network loss.
func ackOnceServer(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		acked := false
		for {
			_, raddr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if acked {
				continue // drop every subsequent datagram
			}
			acked = true
			_, _ = conn.WriteToUDP([]byte{0x60, 0x00, 0x00, 0x00}, raddr)
		}
	}()
	return conn.LocalAddr().String()
}

func TestCoAPAdapterTripsDisconnectAfterMaxConsecutiveFails(t *testing.T) {
	addr := ackOnceServer(t)

	events := make(chan bool, 4)
	a, err := NewCoAPAdapter(CoAPConfig{
		Addr:                addr,
		ResourcePath:        "telemetry",
		Confirmable:         true,
		MaxConsecutiveFails: 2,
		ExchangeTimeout:     100 * time.Millisecond,
	}, nil, func(connected bool, _ error) { events <- connected }, nil)
	if err != nil {
		t.Fatalf("NewCoAPAdapter() error: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	<-events // the connect transition itself (false -> true)

	a.Submit("", []byte("x"), 0, nil) // times out, fails=1, below threshold
	a.Submit("", []byte("x"), 0, nil) // times out, fails=2, trips disconnect

	select {
	case connected := <-events:
		if connected {
			t.Fatal("expected a disconnect event after MaxConsecutiveFails failures")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the adapter to report disconnect")
	}
}
