// File: transport/client.go
//
// Outbound TCP transport: one connection, asynchronous connect with
// completion signaled through the reactor.

package transport

import (
	"log/slog"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/reactor"
)

// SocketClient implements Transport for a single outbound connection.
// The context state mirrors the connection's data source.
type SocketClient struct {
	io   *connIO
	cfg  Config
	loop *reactor.Loop
	log  *slog.Logger

	state api.State
	ds    *DataSource

	startAfterReady bool
}

var _ Transport = (*SocketClient)(nil)

// NewSocketClient builds a client transport on loop.
func NewSocketClient(loop *reactor.Loop, cfg Config) *SocketClient {
	cfg.normalize()
	c := &SocketClient{
		cfg:   cfg,
		loop:  loop,
		log:   cfg.Logger.With("transport", "socket_client"),
		state: api.StateNone,
	}
	c.io = newConnIO(loop, &c.cfg, func(*DataSource) {
		// The only connection died; the context follows it down.
		if c.state != api.StateClosed && c.state != api.StateUninit {
			c.state = api.StateClosed
		}
	})
	return c
}

// State returns the context lifecycle state.
func (c *SocketClient) State() api.State { return c.state }

// Source returns the client's single data source, nil before Init.
func (c *SocketClient) Source() *DataSource { return c.ds }

// Init allocates the native socket.
func (c *SocketClient) Init() error {
	next, err := api.Transition(c.state, api.StateInit)
	if err != nil {
		return err
	}
	fd, err := newTCPSocket()
	if err != nil {
		return api.NewError(api.ErrCodeConfig, "client socket create failed").Wrap(err)
	}
	c.ds = newDataSource(fd, "", c, c.cfg.In, c.cfg.Out)
	c.state = next
	return nil
}

// Open begins the non-blocking connect. Completion — success or
// refusal — arrives via a reactor callback once the loop is pumped,
// not through this return value.
func (c *SocketClient) Open() error {
	next, err := api.Transition(c.state, api.StateReadyPending)
	if err != nil {
		return err
	}
	if err := c.ds.transition(api.StateReadyPending); err != nil {
		return err
	}
	pending, err := connectFd(c.ds.fd, c.cfg.Addr, c.cfg.Port)
	if err != nil {
		return api.NewError(api.ErrCodeConfig, "connect failed").
			WithContext("addr", c.cfg.Addr).
			WithContext("port", c.cfg.Port).
			Wrap(err)
	}
	c.state = next
	if !pending {
		return c.finishConnect()
	}
	// Writability on a connecting socket signals handshake completion.
	return c.loop.Reactor().Register(c.ds.fd, reactor.EventWrite, c.onConnectEvent)
}

func (c *SocketClient) onConnectEvent(fd int, ev reactor.EventType) {
	// The connect registration is replaced by the normal servicing
	// callback once the source is ready.
	if err := c.loop.Reactor().Unregister(fd); err != nil {
		c.log.Debug("unregister connecting fd", "error", err)
	}
	if ev&reactor.EventError != 0 {
		c.connectFailed(api.ErrClosed)
		return
	}
	if err := soError(fd); err != nil {
		c.connectFailed(err)
		return
	}
	if err := c.finishConnect(); err != nil {
		c.connectFailed(err)
	}
}

func (c *SocketClient) connectFailed(err error) {
	c.log.Warn("connect failed", "addr", c.cfg.Addr, "port", c.cfg.Port, "error", err)
	_ = c.io.closeSource(c.ds)
	if c.cfg.OnError != nil {
		c.cfg.OnError(c.ds, err)
	}
}

func (c *SocketClient) finishConnect() error {
	if err := c.io.ready(c.ds); err != nil {
		return err
	}
	c.state = api.StateReady
	if c.startAfterReady {
		c.state = api.StateStart
	}
	c.log.Info("connected", "addr", c.cfg.Addr, "port", c.cfg.Port, "source", c.ds.id)
	return nil
}

// Start pumps the loop. Legal once Open has been issued; the context
// finishes ReadyPending → Ready on the loop itself.
func (c *SocketClient) Start() error {
	switch c.state {
	case api.StateReady, api.StateStop:
		c.state = api.StateStart
	case api.StateReadyPending:
		c.startAfterReady = true
	default:
		return api.ErrInvalidState
	}
	err := c.loop.Run()
	if c.state == api.StateStart {
		c.state = api.StateStop
	}
	return err
}

// Stop requests loop termination.
func (c *SocketClient) Stop() error {
	if c.state != api.StateStart && c.state != api.StateReadyPending {
		return api.ErrInvalidState
	}
	c.loop.Stop()
	return nil
}

// Send queues payload on the client's connection. A nil ds means the
// client's own source.
func (c *SocketClient) Send(ds *DataSource, payload []byte) (int, error) {
	if ds == nil {
		ds = c.ds
	}
	if ds == nil {
		return 0, api.ErrInvalidState
	}
	return c.io.send(ds, payload)
}

// Close tears down the connection; idempotent.
func (c *SocketClient) Close(ds *DataSource) error {
	if ds == nil {
		ds = c.ds
	}
	if ds == nil {
		if c.state == api.StateClosed {
			return nil
		}
		next, err := api.Transition(c.state, api.StateClosed)
		if err != nil {
			return err
		}
		c.state = next
		return nil
	}
	err := c.io.closeSource(ds)
	if err == nil && c.state != api.StateUninit {
		c.state = api.StateClosed
	}
	return err
}

// Uninit destroys the context; valid only after Close.
func (c *SocketClient) Uninit() error {
	next, err := api.Transition(c.state, api.StateUninit)
	if err != nil {
		return err
	}
	c.state = next
	if c.ds != nil {
		c.ds.state = api.StateUninit
		c.ds = nil
	}
	return nil
}

// Check reports whether the connection is usable.
func (c *SocketClient) Check() error {
	if c.ds != nil && (c.ds.state == api.StateReady || c.ds.state == api.StateStart) {
		return nil
	}
	return api.ErrInvalidState
}

var _ api.Checker = (*SocketClient)(nil)
