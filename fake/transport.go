// File: fake/transport.go
//
// Fake transport for tests that need lifecycle behavior without
// sockets. Every operation drives the real state machine, so tests
// against the fake catch the same transition errors as the socket
// variants would.

package fake

import (
	"sync"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/transport"
)

// Transport records sends and fails on demand.
type Transport struct {
	mu    sync.Mutex
	state api.State

	sent [][]byte

	// Scriptable failures, applied once reached.
	InitErr  error
	OpenErr  error
	SendErr  error
	CloseErr error
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport returns a fake in the uncreated state.
func NewTransport() *Transport {
	return &Transport{state: api.StateNone}
}

// State returns the current lifecycle state.
func (f *Transport) State() api.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Sent returns copies of every payload accepted so far.
func (f *Transport) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	for i, p := range f.sent {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

func (f *Transport) transition(to api.State) error {
	next, err := api.Transition(f.state, to)
	if err != nil {
		return err
	}
	f.state = next
	return nil
}

func (f *Transport) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr != nil {
		return f.InitErr
	}
	return f.transition(api.StateInit)
}

func (f *Transport) Uninit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(api.StateUninit)
}

// Open moves straight to Ready; the fake has no pending phase.
func (f *Transport) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	if err := f.transition(api.StateReadyPending); err != nil {
		return err
	}
	return f.transition(api.StateReady)
}

func (f *Transport) Close(ds *transport.DataSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloseErr != nil {
		return f.CloseErr
	}
	if ds != nil {
		return api.ErrInvalidArgument
	}
	if f.state == api.StateClosed {
		return nil
	}
	return f.transition(api.StateClosed)
}

func (f *Transport) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(api.StateStart)
}

func (f *Transport) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(api.StateStop)
}

// Send records the payload. Like the socket transports it only
// accepts traffic while Ready or Start.
func (f *Transport) Send(_ *transport.DataSource, payload []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return 0, f.SendErr
	}
	if f.state != api.StateReady && f.state != api.StateStart {
		return 0, api.ErrInvalidState
	}
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return len(payload), nil
}

// Check reports healthy while the transport is usable.
func (f *Transport) Check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case api.StateReady, api.StateStart, api.StateStop:
		return nil
	}
	return api.ErrInvalidState
}
