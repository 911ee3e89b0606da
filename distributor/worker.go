// File: distributor/worker.go
//
// Worker side: read the control pipe, recover each passed descriptor,
// and adopt it into a local adopt-only socket server as if it had been
// accepted here.

package distributor

import (
	"log/slog"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/control"
	"github.com/ray820328/ripc/reactor"
	"github.com/ray820328/ripc/transport"
)

// ControlFD is where a spawned worker finds its control pipe: the
// master wires it to standard input.
const ControlFD = 0

// WorkerConfig configures the worker-side runtime. The embedded
// transport.Config shapes how adopted connections are serviced
// (handlers, callbacks, buffer capacity).
type WorkerConfig struct {
	// Conns configures the server servicing adopted connections.
	// AdoptOnly is forced on.
	Conns transport.Config

	Logger  *slog.Logger
	Metrics *control.Metrics
}

// Worker is one worker process's runtime: its control pipe and the
// adopt-only server owning its connection set.
type Worker struct {
	log  *slog.Logger
	loop *reactor.Loop
	pipe *transport.Pipe
	srv  *transport.SocketServer
}

// NewWorker builds a worker runtime reading controlFD on loop.
func NewWorker(loop *reactor.Loop, controlFD int, cfg WorkerConfig) *Worker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Conns.AdoptOnly = true
	if cfg.Conns.Logger == nil {
		cfg.Conns.Logger = cfg.Logger
	}
	if cfg.Conns.Metrics == nil {
		cfg.Conns.Metrics = cfg.Metrics
	}

	w := &Worker{
		log:  cfg.Logger.With("component", "worker"),
		loop: loop,
		srv:  transport.NewSocketServer(loop, cfg.Conns),
	}
	w.pipe = transport.NewPipe(loop, controlFD, transport.PipeConfig{
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
		// The dummy payload exists only to make the message valid;
		// the descriptor in the ancillary data is the cargo.
		OnFD: func(fd int) {
			if _, err := w.srv.Adopt(fd, ""); err != nil {
				w.log.Warn("adopting handed-off connection failed", "error", err)
				_ = transport.CloseFD(fd)
			}
		},
		OnClosed: func() {
			// Master is gone; no more handoffs will arrive.
			w.log.Info("control pipe closed, stopping")
			w.loop.Stop()
		},
	})
	return w
}

// Server exposes the worker's connection server (send, close, counts).
func (w *Worker) Server() *transport.SocketServer { return w.srv }

// Open readies the connection server and the control pipe.
func (w *Worker) Open() error {
	if err := w.srv.Init(); err != nil {
		return err
	}
	if err := w.srv.Open(); err != nil {
		return err
	}
	if err := w.pipe.Init(); err != nil {
		return err
	}
	return w.pipe.Open()
}

// Run pumps the worker's loop until Stop, servicing adopted
// connections and the control pipe alike. Blocking.
func (w *Worker) Run() error {
	return w.srv.Start()
}

// Stop requests loop termination.
func (w *Worker) Stop() error {
	w.loop.Stop()
	return nil
}

// Close tears down the connection set and the control pipe.
func (w *Worker) Close() error {
	err := w.srv.Close(nil)
	if perr := w.pipe.Close(nil); err == nil {
		err = perr
	}
	return err
}

// Check reports readiness: the pipe must be open and the server able
// to adopt.
func (w *Worker) Check() error {
	if w.pipe.State() != api.StateReady && w.pipe.State() != api.StateStart {
		return api.ErrInvalidState
	}
	return w.srv.Check()
}
