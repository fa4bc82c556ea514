package bytebuffers

import (
	"io"

	"github.com/brickingsoft/errors"
)

var (
	ErrTooLarge                  = errors.Define("bytebuffers: too large")
	ErrAllocateZero              = errors.Define("bytebuffers: cannot allocate zero")
	ErrWriteBeforeAllocatedWrote = errors.Define("bytebuffers: write before AllocatedWrote of prev Allocate")
)

// Buffer is a growable byte buffer with an explicit read window.
// Allocate/AllocatedWrote open a zero-copy write window; Write is rejected
// while a window is open.
type Buffer interface {
	Len() (n int)
	Cap() (n int)
	Peek(n int) (p []byte)
	Next(n int) (p []byte, err error)
	Discard(n int) (err error)
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Allocate(size int) (p []byte, err error)
	AllocatedWrote(n int) (err error)
	WritePending() bool
	Reset()
}

const defaultSize = 4096

func NewBuffer() Buffer {
	return NewBufferWithSize(defaultSize)
}

func NewBufferWithSize(size int) Buffer {
	if size < 1 {
		size = defaultSize
	}
	return &buffer{b: make([]byte, 0, size)}
}

type buffer struct {
	b []byte
	r int
	w int
	a int
}

func (buf *buffer) Len() int { return buf.w - buf.r }

func (buf *buffer) Cap() int { return cap(buf.b) }

func (buf *buffer) Peek(n int) (p []byte) {
	bLen := buf.Len()
	if n < 1 || bLen == 0 {
		return
	}
	if n > bLen {
		n = bLen
	}
	p = buf.b[buf.r : buf.r+n]
	return
}

func (buf *buffer) Next(n int) (p []byte, err error) {
	if n < 1 {
		return
	}
	bLen := buf.Len()
	if bLen == 0 {
		err = io.EOF
		return
	}
	if n > bLen {
		n = bLen
	}
	p = make([]byte, n)
	copy(p, buf.b[buf.r:buf.r+n])
	buf.r += n
	buf.tryReset()
	return
}

func (buf *buffer) Discard(n int) (err error) {
	if n < 1 {
		return
	}
	if bLen := buf.Len(); n >= bLen {
		n = bLen
	}
	buf.r += n
	buf.tryReset()
	return
}

func (buf *buffer) Read(p []byte) (n int, err error) {
	if buf.Len() == 0 {
		err = io.EOF
		return
	}
	if len(p) == 0 {
		return
	}
	n = copy(p, buf.b[buf.r:buf.w])
	buf.r += n
	buf.tryReset()
	return
}

func (buf *buffer) Write(p []byte) (n int, err error) {
	if buf.WritePending() {
		err = errors.From(ErrWriteBeforeAllocatedWrote)
		return
	}
	pLen := len(p)
	if pLen == 0 {
		return
	}
	if err = buf.grow(pLen); err != nil {
		return
	}
	n = copy(buf.b[buf.w:buf.w+pLen], p)
	buf.w += n
	buf.a = buf.w
	return
}

func (buf *buffer) Allocate(size int) (p []byte, err error) {
	if buf.WritePending() {
		err = errors.From(ErrWriteBeforeAllocatedWrote)
		return
	}
	if size < 1 {
		err = errors.From(ErrAllocateZero)
		return
	}
	if err = buf.grow(size); err != nil {
		return
	}
	buf.a = buf.w + size
	p = buf.b[buf.w:buf.a]
	return
}

func (buf *buffer) AllocatedWrote(n int) (err error) {
	if !buf.WritePending() {
		return
	}
	if n > 0 {
		buf.w += n
	}
	buf.a = buf.w
	return
}

func (buf *buffer) WritePending() bool {
	return buf.a != buf.w
}

func (buf *buffer) Reset() {
	buf.b = buf.b[:0]
	buf.r = 0
	buf.w = 0
	buf.a = 0
}

func (buf *buffer) tryReset() {
	if buf.r == buf.w && buf.a == buf.w {
		buf.Reset()
	}
}

func (buf *buffer) grow(n int) (err error) {
	defer func() {
		if recover() != nil {
			err = errors.From(ErrTooLarge)
		}
	}()
	if buf.w+n <= cap(buf.b) {
		buf.b = buf.b[:buf.w+n]
		return
	}
	// compact the consumed prefix before reallocating
	if buf.r > 0 && buf.w-buf.r+n <= cap(buf.b) {
		copy(buf.b[:cap(buf.b)], buf.b[buf.r:buf.w])
		buf.w -= buf.r
		buf.a -= buf.r
		buf.r = 0
		buf.b = buf.b[:buf.w+n]
		return
	}
	next := cap(buf.b) * 2
	if next < buf.w+n {
		next = buf.w + n
	}
	nb := make([]byte, buf.w-buf.r+n, next)
	copy(nb, buf.b[buf.r:buf.w])
	buf.w -= buf.r
	buf.a -= buf.r
	buf.r = 0
	buf.b = nb
	return
}
