package reference

import (
	"io"
	"sync/atomic"

	"github.com/brickingsoft/errors"
)

var ErrReleased = errors.Define("reference: released")

// Make wraps value with an ownership count of one, held by the caller.
func Make[E io.Closer](value E) *Pointer[E] {
	p := &Pointer[E]{value: value}
	p.count.Store(1)
	return p
}

// Pointer is a shared ownership handle. The holder of the last reference
// closes the value via Release; further Retain or Release calls fail.
type Pointer[E io.Closer] struct {
	value E
	count atomic.Int64
}

func (pointer *Pointer[E]) Value() E {
	return pointer.value
}

func (pointer *Pointer[E]) Count() int64 {
	return pointer.count.Load()
}

func (pointer *Pointer[E]) Retain() (err error) {
	for {
		n := pointer.count.Load()
		if n < 1 {
			err = errors.From(ErrReleased)
			return
		}
		if pointer.count.CompareAndSwap(n, n+1) {
			return
		}
	}
}

func (pointer *Pointer[E]) Release() (err error) {
	for {
		n := pointer.count.Load()
		if n < 1 {
			err = errors.From(ErrReleased)
			return
		}
		if pointer.count.CompareAndSwap(n, n-1) {
			if n == 1 {
				err = pointer.value.Close()
			}
			return
		}
	}
}
