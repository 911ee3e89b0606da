// File: fake/reactor.go
//
// Fake reactor with test-injected readiness events. Lets loop and
// transport-level logic run on any platform, no epoll required.

package fake

import (
	"sync"
	"time"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/reactor"
)

type fakeEvent struct {
	fd     int
	events reactor.EventType
	wake   bool
}

// Reactor implements reactor.Reactor over an in-memory event queue.
// Tests inject readiness with Fire; Poll dispatches it.
type Reactor struct {
	mu     sync.Mutex
	cbs    map[int]reactor.Callback
	closed bool

	events chan fakeEvent
}

var _ reactor.Reactor = (*Reactor)(nil)

// NewReactor returns an empty fake reactor.
func NewReactor() *Reactor {
	return &Reactor{
		cbs:    make(map[int]reactor.Callback),
		events: make(chan fakeEvent, 128),
	}
}

// Fire injects a readiness event for fd, as if the OS reported it.
func (f *Reactor) Fire(fd int, events reactor.EventType) {
	f.events <- fakeEvent{fd: fd, events: events}
}

// Registered reports whether fd currently has a callback.
func (f *Reactor) Registered(fd int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.cbs[fd]
	return ok
}

func (f *Reactor) Register(fd int, _ reactor.EventType, cb reactor.Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return api.ErrClosed
	}
	if _, dup := f.cbs[fd]; dup {
		return api.ErrInvalidArgument
	}
	f.cbs[fd] = cb
	return nil
}

func (f *Reactor) Modify(fd int, _ reactor.EventType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cbs[fd]; !ok {
		return api.ErrInvalidArgument
	}
	return nil
}

func (f *Reactor) Unregister(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cbs[fd]; !ok {
		return api.ErrInvalidArgument
	}
	delete(f.cbs, fd)
	return nil
}

// Poll dispatches queued events. With a negative timeout it parks
// until an event or a Wakeup arrives, mirroring the epoll variant.
func (f *Reactor) Poll(timeoutMs int) (int, error) {
	var ev fakeEvent
	if timeoutMs < 0 {
		ev = <-f.events
	} else {
		select {
		case ev = <-f.events:
		case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
			return 0, nil
		}
	}
	if ev.wake {
		return 0, nil
	}
	f.mu.Lock()
	cb := f.cbs[ev.fd]
	f.mu.Unlock()
	if cb == nil { // unregistered since Fire; drop, like a stale epoll event
		return 0, nil
	}
	cb(ev.fd, ev.events)
	return 1, nil
}

func (f *Reactor) Wakeup() error {
	f.events <- fakeEvent{wake: true}
	return nil
}

func (f *Reactor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cbs = map[int]reactor.Callback{}
	return nil
}
