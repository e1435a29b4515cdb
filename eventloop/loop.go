// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package eventloop

import (
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// poller is the platform-specific fd-readiness primitive a loop drives:
// epoll on Linux (poller_linux.go), poll(2) elsewhere (poller_other.go).
type poller interface {
	add(fd int, events EventMask) error
	remove(fd int) error
	// wait blocks for at most timeout (or indefinitely if timeout < 0)
	// and returns the fds that became ready.
	wait(timeout time.Duration) ([]int, error)
	close() error
}

type timerEntry struct {
	deadline time.Time
	fn       func()
	canceled atomic.Bool
}

func (t *timerEntry) Cancel() {
	t.canceled.Store(true)
}

type loop struct {
	mu       sync.Mutex
	posted   []func()
	timers   []*timerEntry
	handlers map[int]func()

	p poller

	wakeR, wakeW *os.File

	stopped bool
}

func newLoop(p poller) (*loop, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	l := &loop{
		p:        p,
		handlers: map[int]func(){},
		wakeR:    r,
		wakeW:    w,
	}
	if err := p.add(int(r.Fd()), ReadableEvent); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	l.handlers[int(r.Fd())] = func() {
		var buf [64]byte
		r.Read(buf[:])
	}
	return l, nil
}

func (l *loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.wake()
}

func (l *loop) wake() {
	l.wakeW.Write([]byte{0})
}

func (l *loop) RegisterEvent(fd int, events EventMask, fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.p.add(fd, events); err != nil {
		return err
	}
	l.handlers[fd] = fn
	return nil
}

func (l *loop) DeregisterEvent(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, fd)
	return l.p.remove(fd)
}

func (l *loop) CallLater(d time.Duration, fn func()) Timer {
	t := &timerEntry{deadline: time.Now().Add(d), fn: fn}
	l.mu.Lock()
	l.timers = append(l.timers, t)
	sort.Slice(l.timers, func(i, j int) bool { return l.timers[i].deadline.Before(l.timers[j].deadline) })
	l.mu.Unlock()
	l.wake()
	return t
}

func (l *loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.wake()
}

// Run drives posted callbacks, due timers, and ready fds until Stop is
// called or done is closed. It never spawns additional goroutines of its
// own; callers share one loop per OS thread, per §5's single-threaded
// cooperative scheduling.
func (l *loop) Run(done <-chan struct{}) {
	for {
		l.mu.Lock()
		posted := l.posted
		l.posted = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range posted {
			fn()
		}

		// a callback posted before Stop still runs (drained above); only
		// now does Stop actually end the loop.
		if stopped {
			return
		}

		select {
		case <-done:
			return
		default:
		}

		timeout := l.nextTimeout()
		ready, err := l.p.wait(timeout)
		if err != nil {
			continue
		}

		l.mu.Lock()
		var handlers []func()
		for _, fd := range ready {
			if fn, ok := l.handlers[fd]; ok {
				handlers = append(handlers, fn)
			}
		}
		l.mu.Unlock()
		for _, fn := range handlers {
			fn()
		}

		l.runDueTimers()
	}
}

func (l *loop) nextTimeout() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.posted) > 0 {
		return 0
	}
	for _, t := range l.timers {
		if !t.canceled.Load() {
			d := time.Until(t.deadline)
			if d < 0 {
				return 0
			}
			return d
		}
	}
	return -1
}

func (l *loop) runDueTimers() {
	now := time.Now()
	l.mu.Lock()
	var due []func()
	remaining := l.timers[:0]
	for _, t := range l.timers {
		if t.canceled.Load() {
			continue
		}
		if !t.deadline.After(now) {
			due = append(due, t.fn)
		} else {
			remaining = append(remaining, t)
		}
	}
	l.timers = remaining
	l.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

func (l *loop) Close() error {
	l.wakeR.Close()
	l.wakeW.Close()
	return l.p.close()
}
