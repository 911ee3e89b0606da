//go:build linux
// +build linux

// File: reactor/reactor_linux.go
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// epollReactor dispatches readiness events from one epoll instance.
// Register/Modify/Unregister are called only from the loop goroutine;
// Wakeup may be called from anywhere.
type epollReactor struct {
	epfd      int
	wakeFd    int // eventfd, registered internally for Wakeup
	callbacks map[int]Callback
}

// New constructs the platform reactor for Linux.
func New() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	r := &epollReactor{
		epfd:      epfd,
		wakeFd:    wakeFd,
		callbacks: make(map[int]Callback),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return r, nil
}

func epollEvents(events EventType) uint32 {
	var ev uint32
	if events&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd int, events EventType, cb Callback) error {
	ev := unix.EpollEvent{Events: epollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	r.callbacks[fd] = cb
	return nil
}

// Modify replaces the interest set for fd.
func (r *epollReactor) Modify(fd int, events EventType) error {
	ev := unix.EpollEvent{Events: epollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *epollReactor) Unregister(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	delete(r.callbacks, fd)
	return nil
}

// Poll waits for events and dispatches callbacks.
func (r *epollReactor) Poll(timeoutMs int) (int, error) {
	const maxEvents = 128
	var events [maxEvents]unix.EpollEvent

	n, err := unix.EpollWait(r.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == r.wakeFd {
			r.drainWakeup()
			continue
		}
		cb, ok := r.callbacks[fd]
		if !ok {
			continue
		}
		var et EventType
		if events[i].Events&unix.EPOLLIN != 0 {
			et |= EventRead
		}
		if events[i].Events&unix.EPOLLOUT != 0 {
			et |= EventWrite
		}
		if events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			et |= EventError
		}
		dispatched++
		// A panicking callback must not take the loop down.
		func() {
			defer func() { _ = recover() }()
			cb(fd, et)
		}()
	}
	return dispatched, nil
}

// Wakeup posts to the eventfd so a blocked Poll returns.
func (r *epollReactor) Wakeup() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(r.wakeFd, buf[:])
	if err == unix.EAGAIN {
		// Counter saturated: a wakeup is already pending.
		return nil
	}
	return err
}

func (r *epollReactor) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

// Close releases the epoll instance and the wakeup descriptor.
func (r *epollReactor) Close() error {
	unix.Close(r.wakeFd)
	return unix.Close(r.epfd)
}
