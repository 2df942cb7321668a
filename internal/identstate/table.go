// Package identstate implements the packet-identifier state table for
// the incoming QoS handler: a dense array keyed by 16-bit packet
// identifier, holding a closed tagged union of the five handshake states.
package identstate

import (
	"fmt"

	"github.com/kallstrom/mqrecv/internal/packets"
)

// Kind identifies which of the five State variants is populated.
type Kind uint8

const (
	Absent Kind = iota
	Qos1Pending
	Qos2Pending
	Qos1Acked
	Qos2Acked
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "Absent"
	case Qos1Pending:
		return "Qos1Pending"
	case Qos2Pending:
		return "Qos2Pending"
	case Qos1Acked:
		return "Qos1Acked"
	case Qos2Acked:
		return "Qos2Acked"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// State is a closed tagged union over the five identifier states named
// in the handshake. Only the field matching Kind is meaningful; zero
// value is Absent.
type State struct {
	Kind   Kind
	PubAck *packets.PubAckPacket // populated iff Kind == Qos1Acked
	PubRec *packets.PubRecPacket // populated iff Kind == Qos2Acked
}

var absentState = State{Kind: Absent}

// minTableSize is the initial backing array size. Most connections run
// with a receive window far smaller than the full 65535-identifier
// space, so the table starts small and grows on demand rather than
// pre-allocating the maximum up front.
const minTableSize = 64

// Table is an indexed mapping from packet identifier (1..65535) to its
// current handshake State. It is not safe for concurrent use; callers
// must serialize access on a single goroutine (the owning I/O loop).
type Table struct {
	slots []State // slots[0] is unused; packet identifiers are 1-based
}

// New returns an empty Table.
func New() *Table {
	return &Table{slots: make([]State, minTableSize)}
}

func (t *Table) ensure(id uint16) {
	if int(id) < len(t.slots) {
		return
	}
	grown := make([]State, id+1)
	copy(grown, t.slots)
	t.slots = grown
}

// Get returns the current state for id, or Absent if none is set.
func (t *Table) Get(id uint16) State {
	if int(id) >= len(t.slots) {
		return absentState
	}
	return t.slots[id]
}

// GetAndSet atomically replaces the state at id with next, returning the
// state that was there before.
func (t *Table) GetAndSet(id uint16, next State) State {
	t.ensure(id)
	prev := t.slots[id]
	t.slots[id] = next
	return prev
}

// Remove clears the state at id, returning the state that was there
// before.
func (t *Table) Remove(id uint16) State {
	if int(id) >= len(t.slots) {
		return absentState
	}
	prev := t.slots[id]
	t.slots[id] = absentState
	return prev
}

// Put unconditionally sets the state at id, discarding whatever was
// there. Used to revert a rejected transition back to its prior state.
func (t *Table) Put(id uint16, s State) {
	t.ensure(id)
	t.slots[id] = s
}

// Clear resets every slot to Absent. Called on transport disconnect.
func (t *Table) Clear() {
	for i := range t.slots {
		t.slots[i] = absentState
	}
}
