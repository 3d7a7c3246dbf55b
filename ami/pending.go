package ami

import (
	"strings"
	"sync"
)

// pendingOutcome is what a pending slot is resolved with: either a
// matching response message, or an error (Cancelled on voluntary Stop,
// a fault's cause otherwise).
type pendingOutcome struct {
	msg Message
	err error
}

// pendingSlot is the one-shot completion handoff between the worker and a
// Publish caller. Buffered by one so the worker never blocks delivering it.
type pendingSlot chan pendingOutcome

// pendingTable is a concurrent mapping from ActionID (case-insensitive) to
// a pending slot. Exactly one of TryTake (a matching response arrives) or
// DrainWith (the client stops) ever resolves a given slot, so a Publish
// call waiting on it is guaranteed to unblock exactly once.
type pendingTable struct {
	mu   sync.Mutex
	byID map[string]pendingSlot
}

func newPendingTable() *pendingTable {
	return &pendingTable{byID: make(map[string]pendingSlot)}
}

// TryInsert registers slot under id. It returns false without modifying
// the table if id is already present.
func (t *pendingTable) TryInsert(id string, slot pendingSlot) bool {
	key := strings.ToLower(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[key]; exists {
		return false
	}
	t.byID[key] = slot
	return true
}

// TryTake atomically removes and returns the slot registered under id.
func (t *pendingTable) TryTake(id string) (pendingSlot, bool) {
	key := strings.ToLower(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.byID[key]
	if ok {
		delete(t.byID, key)
	}
	return slot, ok
}

// DrainWith removes every entry and delivers outcome to each slot. Called
// exactly once, by Stop.
func (t *pendingTable) DrainWith(err error) {
	t.mu.Lock()
	slots := t.byID
	t.byID = make(map[string]pendingSlot)
	t.mu.Unlock()

	for _, slot := range slots {
		slot <- pendingOutcome{err: err}
	}
}
