package packets

import (
	"fmt"
	"io"
)

// FixedHeader is the fixed header present in every MQTT control packet.
// Format: [PacketType + Flags (1 byte)][Remaining Length (1-4 bytes)]
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// appendBytes appends the encoded fixed header to dst.
func (h *FixedHeader) appendBytes(dst []byte) []byte {
	dst = append(dst, (h.PacketType<<4)|(h.Flags&0x0F))
	return appendVarInt(dst, h.RemainingLength)
}

// WriteTo writes the fixed header to the writer.
func (h *FixedHeader) WriteTo(w io.Writer) (int64, error) {
	var buf [5]byte
	n := copy(buf[:], h.appendBytes(buf[:0]))
	nw, err := w.Write(buf[:n])
	return int64(nw), err
}

// DecodeFixedHeader reads and decodes a fixed header from the reader.
func DecodeFixedHeader(r io.Reader) (*FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	firstByte := buf[0]
	remainingLength, err := decodeVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode remaining length: %w", err)
	}

	return &FixedHeader{
		PacketType:      firstByte >> 4,
		Flags:           firstByte & 0x0F,
		RemainingLength: remainingLength,
	}, nil
}
