// File: transport/datasource.go
//
// Per-connection record: descriptor, buffered-I/O state, lifecycle.

package transport

import (
	"github.com/google/uuid"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/buffer"
)

// DataSource bundles one connection's exclusively owned descriptor,
// its read and write ring buffers, its lifecycle state, and shared
// references to the handler chain. Created on connect or accept,
// destroyed on close completion; owned by a single loop goroutine.
type DataSource struct {
	id    string
	fd    int
	peer  string
	state api.State

	rbuf *buffer.RingBuffer
	wbuf *buffer.RingBuffer

	// Handler chain, shared with the application; not owned.
	in  api.Handler
	out api.Handler

	// Back-reference to the owning transport context; not owned.
	owner Transport

	wantWrite  bool // EPOLLOUT armed, flush pending
	readPaused bool // inbound backpressure: read buffer was full
}

func newDataSource(fd int, peer string, owner Transport, in, out api.Handler) *DataSource {
	return &DataSource{
		id:    uuid.NewString(),
		fd:    fd,
		peer:  peer,
		state: api.StateInit,
		owner: owner,
		in:    in,
		out:   out,
	}
}

var _ api.Source = (*DataSource)(nil)

// ID returns the connection's unique identifier.
func (ds *DataSource) ID() string { return ds.id }

// State returns the current lifecycle state.
func (ds *DataSource) State() api.State { return ds.state }

// Peer returns the remote address, when known.
func (ds *DataSource) Peer() string { return ds.peer }

// FD exposes the native descriptor for cross-process handoff.
func (ds *DataSource) FD() int { return ds.fd }

// Owner returns the transport context this source belongs to.
func (ds *DataSource) Owner() Transport { return ds.owner }

// SetHandlers replaces the handler chain for this source.
func (ds *DataSource) SetHandlers(in, out api.Handler) {
	ds.in = in
	ds.out = out
}

func (ds *DataSource) transition(to api.State) error {
	next, err := api.Transition(ds.state, to)
	if err != nil {
		return err
	}
	ds.state = next
	return nil
}

// ensureBuffers allocates both ring buffers, lazily and exactly once,
// when the source reaches StateReady.
func (ds *DataSource) ensureBuffers(capacity int) {
	if ds.rbuf == nil {
		ds.rbuf = buffer.New(capacity)
		ds.wbuf = buffer.New(capacity)
	}
}

// releaseBuffers drops both buffers; called only on close completion.
func (ds *DataSource) releaseBuffers() {
	ds.rbuf = nil
	ds.wbuf = nil
}

// Buffered reports queued byte counts (readable inbound, unsent
// outbound), mostly for tests and debug logs.
func (ds *DataSource) Buffered() (in, out int) {
	if ds.rbuf != nil {
		in = ds.rbuf.Len()
	}
	if ds.wbuf != nil {
		out = ds.wbuf.Len()
	}
	return in, out
}
