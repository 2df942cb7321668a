package packets

import "sync"

// bufferPool is a pool of byte slices for reading packet bodies. Fixed
// 4KB size covers most control packets and small publish payloads;
// larger packets still allocate.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 4096)
		return &buf
	},
}

// GetBuffer returns a buffer from the pool sized for size bytes. If size
// exceeds the pooled buffer's capacity, it allocates a fresh one instead
// of growing (and later discarding) a pooled buffer.
func GetBuffer(size int) *[]byte {
	if size > 4096 {
		buf := make([]byte, size)
		return &buf
	}
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns buf to the pool. Only buffers with the pool's native
// capacity are accepted back; an oversized one-off allocation is left
// for the garbage collector.
func PutBuffer(bufPtr *[]byte) {
	if cap(*bufPtr) != 4096 {
		return
	}
	bufferPool.Put(bufPtr)
}
