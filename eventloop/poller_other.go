// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package eventloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller is the portable fallback for platforms
// without epoll: poll(2), also exposed by golang.org/x/sys/unix on every
// unix-like build target.
type pollPoller struct {
	events map[int]EventMask
}

func newPoller() (poller, error) {
	return &pollPoller{events: map[int]EventMask{}}, nil
}

func (p *pollPoller) add(fd int, events EventMask) error {
	p.events[fd] = events
	return nil
}

func (p *pollPoller) remove(fd int) error {
	delete(p.events, fd)
	return nil
}

func toPollEvents(events EventMask) int16 {
	var e int16
	if events&ReadableEvent != 0 {
		e |= unix.POLLIN
	}
	if events&WritableEvent != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func (p *pollPoller) wait(timeout time.Duration) ([]int, error) {
	if len(p.events) == 0 {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return nil, nil
	}

	fds := make([]unix.PollFd, 0, len(p.events))
	order := make([]int, 0, len(p.events))
	for fd, events := range p.events {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: toPollEvents(events)})
		order = append(order, fd)
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]int, 0, n)
	for i, pfd := range fds {
		if pfd.Revents != 0 {
			ready = append(ready, order[i])
		}
	}
	return ready, nil
}

func (p *pollPoller) close() error { return nil }

// NewPortable builds a reference event loop backed by poll(2) for
// non-Linux builds; the core itself never depends on which of New or
// NewPortable produced its Loop.
func NewPortable() (Loop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return newLoop(p)
}
