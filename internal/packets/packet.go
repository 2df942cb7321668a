package packets

import "io"

// Packet is implemented by every control packet the incoming QoS handler
// reads or writes.
type Packet interface {
	Type() uint8
	WriteTo(w io.Writer) (int64, error)
}
