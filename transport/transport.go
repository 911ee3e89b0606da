// File: transport/transport.go
//
// The capability contract every transport kind implements, and the
// configuration shared by socket client and server.

package transport

import (
	"errors"
	"log/slog"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/control"
)

// errAgain is the internal would-block signal from the fd helpers.
var errAgain = errors.New("transport: operation would block")

// Transport is the operation set shared by all transport kinds.
// A new kind implements exactly this contract and is consumed
// uniformly by whatever composes servers and clients.
//
// Optional capabilities (api.Checker, api.Receiver, api.ErrorReporter)
// are discovered by type assertion; a kind that lacks one simply does
// not implement it.
type Transport interface {
	// Init allocates the native handle and enters StateInit.
	Init() error

	// Uninit tears down the owning context. Valid only once the
	// handle and buffers are already released (StateClosed).
	Uninit() error

	// Open begins connecting or listening. Completion is signaled via
	// the reactor, not the return value.
	Open() error

	// Close tears down one data source, or the whole context when ds
	// is nil. Idempotent: closing a closed source reports success.
	Close(ds *DataSource) error

	// Start pumps the owning reactor loop. Blocking and cooperative;
	// returns when Stop is called or the loop fails.
	Start() error

	// Stop requests loop termination without closing connections.
	Stop() error

	// Send runs payload through the outbound handler, queues the
	// result in the write buffer and issues an asynchronous write of
	// the buffered span. Returns the count accepted into the queue;
	// acceptance is not delivery.
	Send(ds *DataSource, payload []byte) (int, error)
}

// Config carries the construction parameters for socket transports.
type Config struct {
	// Addr is the bind or dial IPv4 address; empty means all
	// interfaces (server) or loopback (client).
	Addr string
	// Port is the bind or dial TCP port.
	Port int
	// Backlog is the fixed accept backlog (server only).
	Backlog int
	// BufferCapacity sizes each direction's ring buffer.
	BufferCapacity int
	// NoDelay disables Nagle on connection sockets.
	NoDelay bool
	// AdoptOnly makes a server skip bind/listen entirely; connections
	// arrive solely via Adopt after a cross-process handoff.
	AdoptOnly bool

	// In and Out are the protocol handler chain, shared across
	// sources; either may be nil. Lifetime is owned by the caller.
	In  api.Handler
	Out api.Handler

	// OnMessage receives each decoded inbound payload. The slice may
	// alias buffer storage and is valid only during the call.
	OnMessage func(ds *DataSource, payload []byte)
	// OnOpen fires when a source reaches StateReady.
	OnOpen func(ds *DataSource)
	// OnClose fires after a source's buffers are released.
	OnClose func(ds *DataSource)
	// OnError fires for connection-local I/O errors, after the source
	// has been closed.
	OnError func(ds *DataSource, err error)

	Logger  *slog.Logger
	Metrics *control.Metrics
}

func (c *Config) normalize() {
	if c.Backlog <= 0 {
		c.Backlog = control.DefaultBacklog
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = control.DefaultBufferCapacity
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
