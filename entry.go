package troupe

import (
	"sync"

	"github.com/lguibr/troupe/actorid"
)

// entry is a slot record in the Entry Table. It is created once on spawn
// and cleared on termination, just before waiters are notified. Reads (the send
// paths) take the read lock; writes (spawn and terminate) take the write
// lock.
type entry struct {
	mu sync.RWMutex

	live      bool
	runningID actorid.ID

	// msgSend is type-erased: it reports (accepted, typeMatched).
	msgSend func(msg any) (accepted bool, typeMatched bool)
	sysQ    *unboundedQueue[sysMsg]

	waiters []chan Exit
}

// entryTable is the fixed array of per-slot records.
type entryTable struct {
	slots []entry
}

func newEntryTable(capacity int) *entryTable {
	return &entryTable{slots: make([]entry, capacity)}
}

// put installs the live entry for a freshly allocated slot. Called
// exactly once per spawn.
func (t *entryTable) put(id actorid.ID, msgSend func(any) (bool, bool), sysQ *unboundedQueue[sysMsg]) {
	e := &t.slots[id.Slot]
	e.mu.Lock()
	defer e.mu.Unlock()
	e.live = true
	e.runningID = id
	e.msgSend = msgSend
	e.sysQ = sysQ
	e.waiters = nil
}

// read resolves the entry for id's slot if the slot is currently live.
// The returned snapshot's RunningID must be compared against id by the
// caller, since a recycled slot may already hold a different generation.
type entrySnapshot struct {
	runningID actorid.ID
	msgSend   func(any) (bool, bool)
	sysQ      *unboundedQueue[sysMsg]
}

func (t *entryTable) read(id actorid.ID) (entrySnapshot, bool) {
	if int(id.Slot) >= len(t.slots) {
		return entrySnapshot{}, false
	}
	e := &t.slots[id.Slot]
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.live {
		return entrySnapshot{}, false
	}
	return entrySnapshot{runningID: e.runningID, msgSend: e.msgSend, sysQ: e.sysQ}, true
}

// addWaiter registers a Wait reply channel against id's slot, returning
// false if the slot is no longer live for id (caller should resolve
// immediately to NoActor).
func (t *entryTable) addWaiter(id actorid.ID, reply chan Exit) bool {
	if int(id.Slot) >= len(t.slots) {
		return false
	}
	e := &t.slots[id.Slot]
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.live || e.runningID != id {
		return false
	}
	e.waiters = append(e.waiters, reply)
	return true
}

// waitersLen reports how many Wait callers are currently registered
// against id's slot.
func (t *entryTable) waitersLen(id actorid.ID) int {
	if int(id.Slot) >= len(t.slots) {
		return 0
	}
	e := &t.slots[id.Slot]
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.live || e.runningID != id {
		return 0
	}
	return len(e.waiters)
}

// terminate wakes all Wait receivers with reason and frees the slot. It
// is the single point of authority for an actor's final exit reason.
func (t *entryTable) terminate(id actorid.ID, reason Exit) {
	if int(id.Slot) >= len(t.slots) {
		return
	}
	e := &t.slots[id.Slot]
	e.mu.Lock()
	waiters := e.waiters
	if e.live && e.runningID == id {
		e.live = false
		e.runningID = actorid.ID{}
		e.msgSend = nil
		e.sysQ = nil
		e.waiters = nil
	}
	e.mu.Unlock()

	for _, w := range waiters {
		w <- reason
		close(w)
	}
}

// snapshotIDs returns the currently live ActorIDs across all slots.
func (t *entryTable) snapshotIDs() []actorid.ID {
	out := make([]actorid.ID, 0, len(t.slots))
	for i := range t.slots {
		e := &t.slots[i]
		e.mu.RLock()
		if e.live {
			out = append(out, e.runningID)
		}
		e.mu.RUnlock()
	}
	return out
}
