// File: transport/pipe.go
//
// Control-pipe transport over an AF_UNIX stream pair. Carries small
// payloads between master and worker processes, with the crucial
// extra: a live connection descriptor can ride along as SCM_RIGHTS
// ancillary data (SendWithFD / OnFD).

package transport

import (
	"log/slog"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/control"
	"github.com/ray820328/ripc/reactor"
)

// PipeConfig configures one end of a control pipe.
type PipeConfig struct {
	// OnPayload receives each inbound message body.
	OnPayload func(payload []byte)
	// OnFD receives each descriptor recovered from ancillary data.
	// The callee owns the descriptor.
	OnFD func(fd int)
	// OnClosed fires when the peer end is gone.
	OnClosed func()

	Logger  *slog.Logger
	Metrics *control.Metrics
}

// Pipe implements Transport over one end of a SocketPair. The handoff
// is fire-and-forget: writes expect no acknowledgment.
type Pipe struct {
	cfg   PipeConfig
	loop  *reactor.Loop
	log   *slog.Logger
	fd    int
	state api.State
}

var _ Transport = (*Pipe)(nil)

// NewPipe wraps an already-open descriptor, normally one end of
// SocketPair or a worker's inherited stdin.
func NewPipe(loop *reactor.Loop, fd int, cfg PipeConfig) *Pipe {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipe{
		cfg:   cfg,
		loop:  loop,
		log:   cfg.Logger.With("transport", "pipe"),
		fd:    fd,
		state: api.StateNone,
	}
}

// State returns the pipe lifecycle state.
func (p *Pipe) State() api.State { return p.state }

// FD exposes the pipe's descriptor (spawn wiring needs it).
func (p *Pipe) FD() int { return p.fd }

// Init validates the descriptor and forces non-blocking mode.
func (p *Pipe) Init() error {
	next, err := api.Transition(p.state, api.StateInit)
	if err != nil {
		return err
	}
	if p.fd < 0 {
		return api.ErrInvalidArgument
	}
	if err := setNonblock(p.fd); err != nil {
		return api.NewError(api.ErrCodeConfig, "pipe nonblock failed").Wrap(err)
	}
	p.state = next
	return nil
}

// Open registers the pipe with the reactor. The pair is already
// connected, so the context passes straight through ReadyPending.
func (p *Pipe) Open() error {
	if _, err := api.Transition(p.state, api.StateReadyPending); err != nil {
		return err
	}
	if err := p.loop.Reactor().Register(p.fd, reactor.EventRead, p.onReadable); err != nil {
		return err
	}
	p.state = api.StateReady
	return nil
}

// Start pumps the loop; used by worker processes whose only reactor
// input is the control pipe plus adopted connections.
func (p *Pipe) Start() error {
	next, err := api.Transition(p.state, api.StateStart)
	if err != nil {
		return err
	}
	p.state = next
	err = p.loop.Run()
	if p.state == api.StateStart {
		p.state = api.StateStop
	}
	return err
}

// Stop requests loop termination.
func (p *Pipe) Stop() error {
	if p.state != api.StateStart {
		return api.ErrInvalidState
	}
	p.loop.Stop()
	return nil
}

// Send writes a plain payload with no descriptor attached. The pipe
// has no per-connection sources; ds must be nil.
func (p *Pipe) Send(ds *DataSource, payload []byte) (int, error) {
	if ds != nil {
		return 0, api.ErrInvalidArgument
	}
	if p.state != api.StateReady && p.state != api.StateStart {
		return 0, api.ErrInvalidState
	}
	n, err := writeFd(p.fd, payload)
	if err == errAgain {
		return 0, api.ErrBackpressure
	}
	return n, err
}

// SendWithFD writes payload with passFd attached as ancillary data.
// The receiving process recovers its own descriptor for the same open
// connection. Fire-and-forget: no acknowledgment is awaited.
func (p *Pipe) SendWithFD(payload []byte, passFd int) error {
	if p.state != api.StateReady && p.state != api.StateStart {
		return api.ErrInvalidState
	}
	return sendMsgFD(p.fd, payload, passFd)
}

// Close tears down this end of the pipe; idempotent.
func (p *Pipe) Close(ds *DataSource) error {
	if ds != nil {
		return api.ErrInvalidArgument
	}
	if p.state == api.StateClosed {
		return nil
	}
	if _, err := api.Transition(p.state, api.StateClosed); err != nil {
		return err
	}
	if p.fd >= 0 {
		_ = p.loop.Reactor().Unregister(p.fd)
		_ = closeFd(p.fd)
		p.fd = -1
	}
	p.state = api.StateClosed
	return nil
}

// Uninit destroys the context; valid only after Close.
func (p *Pipe) Uninit() error {
	next, err := api.Transition(p.state, api.StateUninit)
	if err != nil {
		return err
	}
	p.state = next
	return nil
}

func (p *Pipe) onReadable(int, reactor.EventType) {
	buf := make([]byte, 256)
	for p.state == api.StateReady || p.state == api.StateStart {
		n, fds, err := recvMsgFD(p.fd, buf)
		if err == errAgain {
			return
		}
		if err != nil {
			p.log.Warn("control pipe read failed", "error", err)
			p.peerGone()
			return
		}
		if n == 0 && len(fds) == 0 { // peer end closed
			p.peerGone()
			return
		}
		for _, fd := range fds {
			if p.cfg.OnFD != nil {
				p.cfg.OnFD(fd)
			} else {
				// Nobody to adopt it; do not leak the descriptor.
				p.log.Warn("descriptor received with no OnFD hook, closing", "fd", fd)
				_ = closeFd(fd)
			}
		}
		if n > 0 && p.cfg.OnPayload != nil {
			p.cfg.OnPayload(buf[:n])
		}
	}
}

func (p *Pipe) peerGone() {
	_ = p.Close(nil)
	if p.cfg.OnClosed != nil {
		p.cfg.OnClosed()
	}
}
