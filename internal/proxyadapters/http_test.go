package proxyadapters

import "testing"

func TestHTTPWebhookRegistryDispatchesToBoundDevice(t *testing.T) {
	r := NewHTTPWebhookRegistry()
	var got []byte
	r.Bind("dev-1", func(payload []byte) { got = payload })

	ok := r.Dispatch("dev-1", []byte(`{"temperature":21}`))
	if !ok {
		t.Fatal("expected Dispatch() to report ok for a bound device")
	}
	if string(got) != `{"temperature":21}` {
		t.Errorf("callback received %q, want the dispatched payload", got)
	}
}

func TestHTTPWebhookRegistryDispatchUnboundDeviceFails(t *testing.T) {
	r := NewHTTPWebhookRegistry()
	if ok := r.Dispatch("does-not-exist", []byte("x")); ok {
		t.Fatal("expected Dispatch() to report !ok for an unbound device")
	}
}

func TestHTTPWebhookRegistryUnbindRemovesDevice(t *testing.T) {
	r := NewHTTPWebhookRegistry()
	r.Bind("dev-1", func([]byte) {})
	r.Unbind("dev-1")

	if ok := r.Dispatch("dev-1", []byte("x")); ok {
		t.Fatal("expected Dispatch() to report !ok after Unbind")
	}
}

func TestHTTPWebhookRegistryBindOverwritesPriorCallback(t *testing.T) {
	r := NewHTTPWebhookRegistry()
	calls := 0
	r.Bind("dev-1", func([]byte) { calls++ })
	r.Bind("dev-1", func([]byte) { calls += 10 })

	r.Dispatch("dev-1", []byte("x"))
	if calls != 10 {
		t.Errorf("calls = %d, want 10 (only the latest bound callback should fire)", calls)
	}
}
