// Package eventloop provides a single goroutine task loop. Tasks submitted to
// a Loop run one at a time in submission order, which makes the loop usable as
// the serialized execution context of a connection.
package eventloop

import (
	"sync"
)

func New() *Loop {
	l := &Loop{
		done: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// Submit enqueues task onto the loop. It reports false when the loop was
// closed, in which case task will never run.
func (l *Loop) Submit(task func()) bool {
	if task == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.cond.Signal()
	return true
}

// Close stops the loop after the tasks already queued have run.
// It is idempotent and does not wait; use Done to wait.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.cond.Signal()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			close(l.done)
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		task()
	}
}
