// Package pool provides reusable byte buffers for the copy workers.
package pool

import "sync"

// BufferPool hands out fixed-size byte slices backed by a sync.Pool so the
// copier workers do not allocate a fresh buffer per file.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of buffers of exactly size bytes.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get retrieves a buffer from the pool.
func (p *BufferPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool. Buffers of a foreign size are dropped so
// the pool never hands out a short slice.
func (p *BufferPool) Put(b *[]byte) {
	if b == nil || cap(*b) != p.size {
		return
	}
	*b = (*b)[:p.size]
	p.pool.Put(b)
}

// Size returns the length of the buffers handed out by this pool.
func (p *BufferPool) Size() int {
	return p.size
}
