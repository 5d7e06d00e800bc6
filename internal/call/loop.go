package call

import (
	"github.com/sasha-s/go-deadlock"
)

// serialLoop runs posted functions one at a time, in post order, on a
// single goroutine. Posting never blocks.
type serialLoop struct {
	mu      deadlock.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newSerialLoop() *serialLoop {
	l := &serialLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// post queues fn. It returns false once the loop was stopped.
func (l *serialLoop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// stop rejects further posts. Functions queued before stop still run.
func (l *serialLoop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *serialLoop) run() {
	defer close(l.done)

	for range l.wake {
		for {
			l.mu.Lock()
			queue := l.queue
			l.queue = nil
			stopped := l.stopped
			l.mu.Unlock()

			if len(queue) == 0 {
				if stopped {
					return
				}
				break
			}
			for _, fn := range queue {
				fn()
			}
		}
	}
}
