package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// appendVarInt appends the Variable Byte Integer encoding of value to dst,
// per MQTT v5.0 spec section 1.5.5.
func appendVarInt(dst []byte, value int) []byte {
	if value < 0 || value > 268435455 { // Max value: 0xFF, 0xFF, 0xFF, 0x7F
		panic(fmt.Sprintf("value %d out of range for variable byte integer", value))
	}

	for {
		digit := byte(value % 128)
		value /= 128
		if value > 0 {
			digit |= 0x80
		}
		dst = append(dst, digit)
		if value == 0 {
			break
		}
	}
	return dst
}

// decodeVarInt reads a Variable Byte Integer from the reader.
func decodeVarInt(r io.Reader) (int, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}

	val, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, err
	}
	if val > 268435455 {
		return 0, fmt.Errorf("variable byte integer exceeds limit")
	}

	return int(val), nil
}

// byteReader wraps an io.Reader to implement io.ByteReader.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (br *byteReader) ReadByte() (byte, error) {
	_, err := io.ReadFull(br.r, br.buf[:])
	return br.buf[0], err
}

// decodeVarIntBuf reads a Variable Byte Integer from a byte slice.
// Returns the decoded value, number of bytes read, and any error.
func decodeVarIntBuf(buf []byte) (int, int, error) {
	val, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, fmt.Errorf("buffer too short for variable byte integer")
	}
	if n < 0 {
		return 0, 0, fmt.Errorf("malformed variable byte integer")
	}
	if n > 4 || val > 268435455 {
		return 0, 0, fmt.Errorf("variable byte integer exceeds limit")
	}

	return int(val), n, nil
}
