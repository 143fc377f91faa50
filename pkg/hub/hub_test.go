package hub

import (
	"testing"
)

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	// Run is intentionally not started: the broadcast channel fills up
	// and further messages must be dropped, not queued.
	h := New("test")
	for i := 0; i < 512; i++ {
		h.Broadcast([]byte("m"))
	}
}

func TestHub_BroadcastJSON(t *testing.T) {
	h := New("test")
	if err := h.BroadcastJSON(map[string]int{"a": 1}); err != nil {
		t.Errorf("BroadcastJSON: %v", err)
	}
	// Channels are not JSON-encodable.
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("unencodable value should return an error")
	}
}

func TestHub_ClientCount(t *testing.T) {
	h := New("test")
	if got := h.ClientCount(); got != 0 {
		t.Errorf("fresh hub should have 0 clients, got %d", got)
	}
}
