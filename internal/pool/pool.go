package pool

import "sync"

// BufferPool hands out byte slices of at least a configured capacity.
type BufferPool struct {
	bufferSize int
	bufferPool sync.Pool
}

func NewBufferPool(bufferSize int) *BufferPool {
	bp := &BufferPool{bufferSize: bufferSize}
	bp.bufferPool.New = func() any {
		b := make([]byte, 0, bufferSize)
		return &b
	}
	return bp
}

// GetBuffer returns a zero-length slice with room for at least size bytes.
func (bp *BufferPool) GetBuffer(size int) []byte {
	if size > bp.bufferSize {
		return make([]byte, 0, size)
	}
	b := bp.bufferPool.Get().(*[]byte)
	return (*b)[:0]
}

// PutBuffer recycles a slice obtained from GetBuffer. Oversized slices are
// left to the garbage collector.
func (bp *BufferPool) PutBuffer(buffer []byte) {
	if cap(buffer) != bp.bufferSize {
		return
	}
	buffer = buffer[:0]
	bp.bufferPool.Put(&buffer)
}

// Copy returns a pooled copy of p.
func (bp *BufferPool) Copy(p []byte) []byte {
	return append(bp.GetBuffer(len(p)), p...)
}
