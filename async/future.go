// Package async provides one-shot promises. A promise resolves exactly once;
// handlers registered before resolution run when it resolves, handlers
// registered after resolution run immediately and synchronously with the
// stored result.
package async

import (
	"sync"
)

type Void struct{}

type ResultHandler[E any] func(entry E, cause error)

type Future[R any] interface {
	// OnComplete registers a result handler. Handlers run in registration
	// order on the resolving goroutine.
	OnComplete(handler ResultHandler[R])
	Completed() bool
}

type Promise[R any] interface {
	// Succeed resolves the promise. It reports false when the promise was
	// already resolved, in which case the call had no effect.
	Succeed(result R) bool
	// Fail resolves the promise with cause. A second failure cause is ignored.
	Fail(cause error) bool
	Complete(result R, cause error) bool
	Completed() bool
	Future() (future Future[R])
}

func New[R any]() Promise[R] {
	return &cell[R]{}
}

func SucceedImmediately[R any](result R) Future[R] {
	return &cell[R]{resolved: true, result: result}
}

func FailedImmediately[R any](cause error) Future[R] {
	return &cell[R]{resolved: true, cause: cause}
}

// Await blocks until future resolves.
func Await[R any](future Future[R]) (result R, cause error) {
	ch := make(chan struct{})
	future.OnComplete(func(entry R, err error) {
		result = entry
		cause = err
		close(ch)
	})
	<-ch
	return
}

type cell[R any] struct {
	locker   sync.Mutex
	resolved bool
	result   R
	cause    error
	handlers []ResultHandler[R]
}

func (c *cell[R]) OnComplete(handler ResultHandler[R]) {
	if handler == nil {
		return
	}
	c.locker.Lock()
	if !c.resolved {
		c.handlers = append(c.handlers, handler)
		c.locker.Unlock()
		return
	}
	result, cause := c.result, c.cause
	c.locker.Unlock()
	handler(result, cause)
}

func (c *cell[R]) Completed() bool {
	c.locker.Lock()
	resolved := c.resolved
	c.locker.Unlock()
	return resolved
}

func (c *cell[R]) Succeed(result R) bool {
	return c.Complete(result, nil)
}

func (c *cell[R]) Fail(cause error) bool {
	var zero R
	return c.Complete(zero, cause)
}

func (c *cell[R]) Complete(result R, cause error) bool {
	c.locker.Lock()
	if c.resolved {
		c.locker.Unlock()
		return false
	}
	c.resolved = true
	c.result = result
	c.cause = cause
	handlers := c.handlers
	c.handlers = nil
	c.locker.Unlock()
	for _, handler := range handlers {
		handler(result, cause)
	}
	return true
}

func (c *cell[R]) Future() (future Future[R]) {
	future = c
	return
}
