package bytebuffers

import (
	"sync"
)

const maxPooledCap = 1 << 20

var defaultPool = sync.Pool{
	New: func() interface{} {
		return NewBuffer()
	},
}

func Get() Buffer {
	return defaultPool.Get().(Buffer)
}

// Put resets b and returns it to the pool. Oversized buffers are dropped to
// keep the pool from pinning large allocations.
func Put(b Buffer) {
	if b == nil || b.Cap() > maxPooledCap {
		return
	}
	b.Reset()
	defaultPool.Put(b)
}
