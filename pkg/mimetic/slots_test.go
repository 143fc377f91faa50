package mimetic

import (
	"testing"
	"time"

	"github.com/blossom-robotics/go-mimetic/pkg/blossom"
)

func testSender() *blossom.Sender {
	// Nothing listens on this port; tests never wait on delivery.
	cfg := blossom.DefaultConfig("127.0.0.1", 1)
	cfg.QueueSize = 4
	return blossom.NewSender(cfg)
}

func TestParseSlotID(t *testing.T) {
	if id, err := ParseSlotID("one"); err != nil || id != SlotOne {
		t.Errorf(`ParseSlotID("one") = %v, %v`, id, err)
	}
	if id, err := ParseSlotID("two"); err != nil || id != SlotTwo {
		t.Errorf(`ParseSlotID("two") = %v, %v`, id, err)
	}
	if _, err := ParseSlotID("three"); err == nil {
		t.Error("unknown slot name should error")
	}
	if SlotOne.String() != "one" || SlotTwo.String() != "two" {
		t.Error("slot wire names changed")
	}
}

func TestSlotTable_AttachDetach(t *testing.T) {
	tbl := NewSlotTable()

	if tbl.Enabled(SlotOne) {
		t.Error("fresh table should have no enabled slots")
	}
	if err := tbl.Attach(SlotOne, testSender()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if !tbl.Enabled(SlotOne) {
		t.Error("slot should be enabled after Attach")
	}
	if err := tbl.Attach(SlotOne, testSender()); err == nil {
		t.Error("double Attach should error")
	}

	tbl.Detach(SlotOne)
	if tbl.Enabled(SlotOne) {
		t.Error("slot should be disabled after Detach")
	}
	tbl.Detach(SlotOne) // no-op on empty slot
}

func TestSlotTable_BroadcastReachesEnabledSlots(t *testing.T) {
	tbl := NewSlotTable()

	one := testSender()
	two := testSender()
	if err := tbl.Attach(SlotOne, one); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Attach(SlotTwo, two); err != nil {
		t.Fatal(err)
	}
	tbl.Detach(SlotTwo)

	tbl.Broadcast(blossom.NewPayload(0, 0, 0, 50, 70, 100))

	// The attached sender either still has the payload queued or its
	// worker has already tried (and failed) to deliver it.
	received := false
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if one.QueueLen()+int(one.Sent())+int(one.Failed()) > 0 {
			received = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !received {
		t.Error("enabled slot should receive the broadcast")
	}
	if two.QueueLen() != 0 {
		t.Error("detached slot must not receive the broadcast")
	}

	tbl.StopAll()
	if tbl.Enabled(SlotOne) {
		t.Error("StopAll should detach every slot")
	}
}

func TestSlotTable_InvalidID(t *testing.T) {
	tbl := NewSlotTable()
	if err := tbl.Attach(SlotID(9), testSender()); err == nil {
		t.Error("out-of-range slot should error")
	}
	if tbl.Enabled(SlotID(9)) {
		t.Error("out-of-range slot should never be enabled")
	}
	tbl.Detach(SlotID(9)) // must not panic
}
