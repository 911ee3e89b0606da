// File: transport/server.go
//
// Listening TCP transport. One SocketServer owns a listening socket
// and the data sources of every connection it services; connections
// may arrive from the local accept loop or be adopted after a
// cross-process descriptor handoff.

package transport

import (
	"log/slog"

	"github.com/creachadair/mds/mapset"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/reactor"
)

// SocketServer implements Transport for inbound TCP.
type SocketServer struct {
	io   *connIO
	cfg  Config
	loop *reactor.Loop
	log  *slog.Logger

	state    api.State
	listenFd int

	// Live sources, iterated on context close.
	sources mapset.Set[*DataSource]

	// OnAccepted intercepts a raw accepted descriptor before it
	// becomes a data source. Used by the distributor master to hand
	// the connection to a worker instead of servicing it locally.
	// Returning false means the callee took ownership of the fd.
	OnAccepted func(fd int, peer string) bool
}

var _ Transport = (*SocketServer)(nil)

// NewSocketServer builds a server transport on loop.
func NewSocketServer(loop *reactor.Loop, cfg Config) *SocketServer {
	cfg.normalize()
	s := &SocketServer{
		cfg:      cfg,
		loop:     loop,
		log:      cfg.Logger.With("transport", "socket_server"),
		state:    api.StateNone,
		listenFd: -1,
		sources:  mapset.New[*DataSource](),
	}
	s.io = newConnIO(loop, &s.cfg, func(ds *DataSource) {
		s.sources.Remove(ds)
	})
	return s
}

// State returns the context lifecycle state.
func (s *SocketServer) State() api.State { return s.state }

// ConnCount reports the number of live sources.
func (s *SocketServer) ConnCount() int { return s.sources.Len() }

// BoundPort reports the listening port, useful when Port was 0.
func (s *SocketServer) BoundPort() (int, error) {
	if s.listenFd < 0 {
		return 0, api.ErrInvalidState
	}
	return localPort(s.listenFd)
}

// Init allocates the listening socket. Adopt-only servers have no
// listener; their connections arrive over a control pipe.
func (s *SocketServer) Init() error {
	next, err := api.Transition(s.state, api.StateInit)
	if err != nil {
		return err
	}
	if !s.cfg.AdoptOnly {
		fd, err := newTCPSocket()
		if err != nil {
			return api.NewError(api.ErrCodeConfig, "listener socket create failed").Wrap(err)
		}
		s.listenFd = fd
	}
	s.state = next
	return nil
}

// Open binds and listens, then registers the accept callback. Listen
// completes synchronously, so the context passes through ReadyPending
// straight to Ready.
func (s *SocketServer) Open() error {
	if _, err := api.Transition(s.state, api.StateReadyPending); err != nil {
		return err
	}
	if s.cfg.AdoptOnly {
		s.state = api.StateReady
		return nil
	}
	if err := bindListen(s.listenFd, s.cfg.Addr, s.cfg.Port, s.cfg.Backlog); err != nil {
		return api.NewError(api.ErrCodeConfig, "listen failed").
			WithContext("addr", s.cfg.Addr).
			WithContext("port", s.cfg.Port).
			Wrap(err)
	}
	if err := s.loop.Reactor().Register(s.listenFd, reactor.EventRead, s.onAcceptable); err != nil {
		return err
	}
	s.state = api.StateReady
	s.log.Info("listening", "addr", s.cfg.Addr, "port", s.cfg.Port, "backlog", s.cfg.Backlog)
	return nil
}

// Start pumps the loop until Stop. Blocking.
func (s *SocketServer) Start() error {
	next, err := api.Transition(s.state, api.StateStart)
	if err != nil {
		return err
	}
	s.state = next
	err = s.loop.Run()
	if s.state == api.StateStart {
		s.state = api.StateStop
	}
	return err
}

// Stop requests loop termination without closing connections.
func (s *SocketServer) Stop() error {
	if s.state != api.StateStart {
		return api.ErrInvalidState
	}
	s.loop.Stop()
	return nil
}

// Send queues payload for one source.
func (s *SocketServer) Send(ds *DataSource, payload []byte) (int, error) {
	return s.io.send(ds, payload)
}

// Close tears down one source, or the whole context when ds is nil.
// Idempotent either way.
func (s *SocketServer) Close(ds *DataSource) error {
	if ds != nil {
		return s.io.closeSource(ds)
	}
	if s.state == api.StateClosed {
		return nil
	}
	if _, err := api.Transition(s.state, api.StateClosed); err != nil {
		return err
	}
	// Snapshot first: closeSource mutates the set.
	live := make([]*DataSource, 0, s.sources.Len())
	for src := range s.sources {
		live = append(live, src)
	}
	for _, src := range live {
		_ = s.io.closeSource(src)
	}
	if s.listenFd >= 0 {
		_ = s.loop.Reactor().Unregister(s.listenFd)
		_ = closeFd(s.listenFd)
		s.listenFd = -1
	}
	s.state = api.StateClosed
	return nil
}

// Uninit destroys the context; valid only after Close.
func (s *SocketServer) Uninit() error {
	next, err := api.Transition(s.state, api.StateUninit)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Check reports whether the context can service connections.
func (s *SocketServer) Check() error {
	if s.state == api.StateReady || s.state == api.StateStart {
		return nil
	}
	return api.ErrInvalidState
}

var _ api.Checker = (*SocketServer)(nil)

// onAcceptable drains the accept queue. A failed accept drops that
// connection and keeps the server running.
func (s *SocketServer) onAcceptable(int, reactor.EventType) {
	for {
		fd, peer, err := acceptConn(s.listenFd)
		if err == errAgain {
			return
		}
		if err != nil {
			s.log.Warn("accept failed, connection dropped", "error", err)
			return
		}
		s.cfg.Metrics.IncAccepted()
		if s.OnAccepted != nil && !s.OnAccepted(fd, peer) {
			continue // intercepted, ownership transferred
		}
		if _, err := s.Adopt(fd, peer); err != nil {
			s.log.Warn("adopting accepted connection failed", "peer", peer, "error", err)
			_ = closeFd(fd)
		}
	}
}

// Adopt turns an already-accepted descriptor into a serviced data
// source, exactly as if this server had accepted it locally. This is
// the worker-side entry point of the descriptor handoff.
func (s *SocketServer) Adopt(fd int, peer string) (*DataSource, error) {
	if s.state != api.StateReady && s.state != api.StateStart {
		return nil, api.ErrInvalidState
	}
	ds := newDataSource(fd, peer, s, s.cfg.In, s.cfg.Out)
	if err := ds.transition(api.StateReadyPending); err != nil {
		return nil, err
	}
	if err := s.io.ready(ds); err != nil {
		_ = s.io.closeSource(ds)
		return nil, err
	}
	s.sources.Add(ds)
	s.log.Debug("connection up", "source", ds.id, "peer", peer)
	return ds, nil
}
