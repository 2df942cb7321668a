package identstate

import (
	"testing"

	"github.com/kallstrom/mqrecv/internal/packets"
)

func TestTableAbsentByDefault(t *testing.T) {
	table := New()
	if got := table.Get(42); got.Kind != Absent {
		t.Fatalf("Get(42) = %v, want Absent", got.Kind)
	}
}

func TestTableGetAndSet(t *testing.T) {
	table := New()

	prev := table.GetAndSet(7, State{Kind: Qos1Pending})
	if prev.Kind != Absent {
		t.Fatalf("first GetAndSet previous = %v, want Absent", prev.Kind)
	}

	prev = table.GetAndSet(7, State{Kind: Qos1Acked, PubAck: &packets.PubAckPacket{PacketID: 7}})
	if prev.Kind != Qos1Pending {
		t.Fatalf("second GetAndSet previous = %v, want Qos1Pending", prev.Kind)
	}

	got := table.Get(7)
	if got.Kind != Qos1Acked || got.PubAck == nil || got.PubAck.PacketID != 7 {
		t.Fatalf("Get(7) = %+v, want Qos1Acked carrying PacketID 7", got)
	}
}

func TestTableRemove(t *testing.T) {
	table := New()
	table.GetAndSet(5, State{Kind: Qos2Acked, PubRec: &packets.PubRecPacket{PacketID: 5}})

	prev := table.Remove(5)
	if prev.Kind != Qos2Acked {
		t.Fatalf("Remove previous = %v, want Qos2Acked", prev.Kind)
	}
	if got := table.Get(5); got.Kind != Absent {
		t.Fatalf("Get(5) after Remove = %v, want Absent", got.Kind)
	}

	// Removing an id with no prior state is a harmless no-op reporting Absent.
	prev = table.Remove(9999)
	if prev.Kind != Absent {
		t.Fatalf("Remove on untouched id = %v, want Absent", prev.Kind)
	}
}

func TestTablePutReverts(t *testing.T) {
	table := New()
	table.GetAndSet(3, State{Kind: Qos2Acked, PubRec: &packets.PubRecPacket{PacketID: 3}})

	// Simulate a rejected transition: GetAndSet clobbers, then Put reverts.
	prev := table.GetAndSet(3, State{Kind: Qos1Pending})
	table.Put(3, prev)

	got := table.Get(3)
	if got.Kind != Qos2Acked || got.PubRec.PacketID != 3 {
		t.Fatalf("Get(3) after revert = %+v, want reverted Qos2Acked", got)
	}
}

func TestTableGrowsBeyondInitialSize(t *testing.T) {
	table := New()
	const big = 60000
	table.GetAndSet(big, State{Kind: Qos1Pending})

	if got := table.Get(big); got.Kind != Qos1Pending {
		t.Fatalf("Get(%d) = %v, want Qos1Pending", big, got.Kind)
	}
	if got := table.Get(1); got.Kind != Absent {
		t.Fatalf("Get(1) after growth = %v, want Absent", got.Kind)
	}
}

func TestTableClear(t *testing.T) {
	table := New()
	table.GetAndSet(1, State{Kind: Qos1Pending})
	table.GetAndSet(2, State{Kind: Qos2Pending})

	table.Clear()

	if got := table.Get(1); got.Kind != Absent {
		t.Fatalf("Get(1) after Clear = %v, want Absent", got.Kind)
	}
	if got := table.Get(2); got.Kind != Absent {
		t.Fatalf("Get(2) after Clear = %v, want Absent", got.Kind)
	}
}
