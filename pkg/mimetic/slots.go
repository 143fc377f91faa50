package mimetic

import (
	"fmt"
	"sync"

	"github.com/blossom-robotics/go-mimetic/pkg/blossom"
)

// SlotID names one of the fixed sender slots. Two robots can mirror
// the same session.
type SlotID int

const (
	// SlotOne is the primary robot.
	SlotOne SlotID = iota
	// SlotTwo is the optional second robot.
	SlotTwo

	slotCount
)

// ParseSlotID maps the wire names "one" and "two" to slot IDs.
func ParseSlotID(name string) (SlotID, error) {
	switch name {
	case "one":
		return SlotOne, nil
	case "two":
		return SlotTwo, nil
	default:
		return 0, fmt.Errorf("unknown sender slot %q", name)
	}
}

// String returns the slot's wire name.
func (id SlotID) String() string {
	switch id {
	case SlotOne:
		return "one"
	case SlotTwo:
		return "two"
	default:
		return fmt.Sprintf("slot(%d)", int(id))
	}
}

type slotState struct {
	sender  *blossom.Sender
	enabled bool
}

// SlotTable is a fixed-size table of named output slots, each
// independently enabled or disabled and iterated uniformly on
// broadcast.
type SlotTable struct {
	mu    sync.Mutex
	slots [slotCount]slotState
}

// NewSlotTable creates an empty table.
func NewSlotTable() *SlotTable {
	return &SlotTable{}
}

// Attach assigns a sender to a slot and starts it. An enabled slot
// must be detached first.
func (t *SlotTable) Attach(id SlotID, sender *blossom.Sender) error {
	if id < 0 || id >= slotCount {
		return fmt.Errorf("invalid slot %d", int(id))
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slots[id].enabled {
		return fmt.Errorf("slot %s already enabled", id)
	}
	t.slots[id] = slotState{sender: sender, enabled: true}
	sender.Start()
	return nil
}

// Detach disables a slot and stops its sender. No-op when the slot is
// already empty.
func (t *SlotTable) Detach(id SlotID) {
	if id < 0 || id >= slotCount {
		return
	}
	t.mu.Lock()
	st := t.slots[id]
	t.slots[id] = slotState{}
	t.mu.Unlock()

	if st.sender != nil {
		st.sender.Stop()
		st.sender.Join()
	}
}

// Enabled reports whether a slot currently has a live sender.
func (t *SlotTable) Enabled(id SlotID) bool {
	if id < 0 || id >= slotCount {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[id].enabled
}

// Broadcast sends the payload to every enabled slot.
func (t *SlotTable) Broadcast(p blossom.Payload) {
	t.mu.Lock()
	var senders []*blossom.Sender
	for i := range t.slots {
		if t.slots[i].enabled && t.slots[i].sender != nil {
			senders = append(senders, t.slots[i].sender)
		}
	}
	t.mu.Unlock()

	for _, s := range senders {
		s.Send(p)
	}
}

// StopAll detaches every slot.
func (t *SlotTable) StopAll() {
	for id := SlotID(0); id < slotCount; id++ {
		t.Detach(id)
	}
}
