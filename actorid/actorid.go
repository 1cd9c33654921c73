// Package actorid implements the compact actor identifier and the
// slot-indexed address pool that hands them out.
package actorid

import "fmt"

// ID is a compact identifier decomposing into a system tag, a slot index
// within that system's pool, and a generation counter. Two IDs denote the
// same actor incarnation iff all three fields are equal; a stale ID (one
// whose generation no longer matches the slot's current generation)
// behaves as if the actor does not exist.
type ID struct {
	System     uint32
	Slot       uint32
	Generation uint32
}

// String renders the ID as "sys:slot.gen", e.g. "a3f1:12.4".
func (id ID) String() string {
	return fmt.Sprintf("%x:%d.%d", id.System, id.Slot, id.Generation)
}

// IsZero reports whether id is the zero value, never a valid lease.
func (id ID) IsZero() bool {
	return id == ID{}
}
