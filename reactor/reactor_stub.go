//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
//
// Stub for platforms without an epoll-class multiplexer.

package reactor

import "github.com/ray820328/ripc/api"

// New reports that no reactor backend exists on this platform.
func New() (Reactor, error) {
	return nil, api.ErrNotSupported
}
