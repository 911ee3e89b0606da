// File: distributor/server.go
//
// Master side: accept connections, hand each to a worker round robin.

package distributor

import (
	"log/slog"
	"runtime"
	"strconv"

	"github.com/creachadair/taskgroup"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/control"
	"github.com/ray820328/ripc/reactor"
	"github.com/ray820328/ripc/transport"
)

// Config carries the master's construction parameters.
type Config struct {
	// Addr and Port are the listening address.
	Addr string
	Port int
	// Backlog is the fixed accept backlog.
	Backlog int
	// WorkerCount is the pool size; 0 applies the default policy of
	// half the detected CPUs plus one.
	WorkerCount int
	// Spawn describes the worker executable.
	Spawn SpawnOptions
	// Spawner launches workers; nil uses ExecSpawner.
	Spawner Spawner

	Logger  *slog.Logger
	Metrics *control.Metrics
}

// DefaultWorkerCount is the pool-sizing policy: cpu/2 + 1. A tunable
// fraction, not a hard requirement.
func DefaultWorkerCount() int {
	return runtime.NumCPU()/2 + 1
}

// ServerContext is the master's entire mutable state: the listener,
// the fixed worker array, and the round-robin counter. Everything
// except the reaper goroutines runs on the loop goroutine, so the
// counter needs no synchronization.
type ServerContext struct {
	cfg  Config
	log  *slog.Logger
	loop *reactor.Loop

	listener *transport.SocketServer
	workers  []*ChildWorker
	next     int // round-robin cursor, always in [0, len(workers))

	reapers *taskgroup.Group

	handoffSeq byte // payload for the one-byte handoff message
}

// NewServer builds a master context on loop. Nothing is spawned or
// bound until Open.
func NewServer(loop *reactor.Loop, cfg Config) *ServerContext {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = control.DefaultBacklog
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount()
	}
	if cfg.Spawner == nil {
		cfg.Spawner = ExecSpawner
	}
	return &ServerContext{
		cfg:     cfg,
		log:     cfg.Logger.With("component", "distributor"),
		loop:    loop,
		reapers: taskgroup.New(nil),
	}
}

// FromStore populates a Config from the dynamic configuration store.
func FromStore(cs *control.ConfigStore) Config {
	return Config{
		Addr:        cs.GetString(control.KeyBindAddr, ""),
		Port:        cs.GetInt(control.KeyBindPort, 0),
		Backlog:     cs.GetInt(control.KeyBacklog, control.DefaultBacklog),
		WorkerCount: cs.GetInt(control.KeyWorkerCount, 0),
		Spawn:       SpawnOptions{Exec: cs.GetString(control.KeyWorkerExec, "")},
	}
}

// Workers returns the worker array; fixed after Open.
func (sc *ServerContext) Workers() []*ChildWorker { return sc.workers }

// BoundPort reports the listener's port.
func (sc *ServerContext) BoundPort() (int, error) {
	if sc.listener == nil {
		return 0, api.ErrInvalidState
	}
	return sc.listener.BoundPort()
}

// Open spawns the worker pool, then binds and listens. A worker that
// fails to spawn is logged and skipped — the master continues with
// fewer workers. Failing to spawn any worker at all is fatal to
// startup, as every accepted connection would be dropped.
func (sc *ServerContext) Open() error {
	for i := 0; i < sc.cfg.WorkerCount; i++ {
		w, err := sc.spawnWorker(i)
		if err != nil {
			sc.log.Error("worker spawn failed, continuing with fewer workers",
				"index", i, "error", err)
			continue
		}
		w.index = len(sc.workers)
		sc.workers = append(sc.workers, w)
	}
	if len(sc.workers) == 0 {
		return api.NewError(api.ErrCodeConfig, "no workers could be spawned").
			Wrap(api.ErrNoWorkers)
	}
	sc.log.Info("worker pool up", "requested", sc.cfg.WorkerCount, "spawned", len(sc.workers))

	sc.listener = transport.NewSocketServer(sc.loop, transport.Config{
		Addr:    sc.cfg.Addr,
		Port:    sc.cfg.Port,
		Backlog: sc.cfg.Backlog,
		Logger:  sc.cfg.Logger,
		Metrics: sc.cfg.Metrics,
	})
	// Every accepted connection is intercepted before it becomes a
	// local data source: the master distributes, it never services.
	sc.listener.OnAccepted = func(fd int, peer string) bool {
		sc.dispatch(fd, peer)
		return false
	}
	if err := sc.listener.Init(); err != nil {
		return err
	}
	return sc.listener.Open()
}

func (sc *ServerContext) spawnWorker(i int) (*ChildWorker, error) {
	fds, err := transport.SocketPair()
	if err != nil {
		return nil, err
	}
	pipe := transport.NewPipe(sc.loop, fds[0], transport.PipeConfig{
		Logger:  sc.cfg.Logger,
		Metrics: sc.cfg.Metrics,
	})
	if err := pipe.Init(); err != nil {
		closePair(fds)
		return nil, err
	}
	if err := pipe.Open(); err != nil {
		closePair(fds)
		return nil, err
	}

	proc, err := sc.cfg.Spawner(sc.cfg.Spawn, fds[1])
	if err != nil {
		_ = pipe.Close(nil)
		return nil, err
	}

	w := &ChildWorker{pipe: pipe, proc: proc, opts: sc.cfg.Spawn}
	w.alive.Store(true)

	// Death callback: log how the process ended and release the
	// handle. No respawn and no rerouting; the dead worker simply
	// stops receiving handoffs once its pipe breaks.
	sc.reapers.Go(func() error {
		status, werr := proc.Wait()
		w.alive.Store(false)
		if sc.cfg.Metrics != nil {
			sc.cfg.Metrics.WorkerDeaths.Inc()
		}
		sc.log.Warn("worker exited", "index", w.index, "pid", proc.PID(),
			"status", status, "error", werr)
		return nil
	})
	return w, nil
}

// dispatch hands one accepted connection to the next worker: a single
// byte of payload (content irrelevant) with the connection descriptor
// attached, fire and forget. The counter advances for every accepted
// connection; a failed handoff drops that connection rather than
// rerouting it.
func (sc *ServerContext) dispatch(fd int, peer string) {
	w := sc.workers[sc.next]
	sc.next = (sc.next + 1) % len(sc.workers)
	sc.handoffSeq++

	err := w.pipe.SendWithFD([]byte{sc.handoffSeq}, fd)
	// The worker holds its own descriptor now (or the handoff failed);
	// either way the master's copy must go.
	_ = transport.CloseFD(fd)
	if err != nil {
		if sc.cfg.Metrics != nil {
			sc.cfg.Metrics.HandoffErrors.Inc()
		}
		sc.log.Warn("handoff failed, connection dropped",
			"worker", w.index, "peer", peer, "error", err)
		return
	}
	w.handoffs.Add(1)
	if sc.cfg.Metrics != nil {
		sc.cfg.Metrics.Handoffs.WithLabelValues(workerLabel(w.index)).Inc()
	}
	sc.log.Debug("connection handed off", "worker", w.index, "peer", peer)
}

// Start pumps the accept loop; blocking until Stop.
func (sc *ServerContext) Start() error {
	if sc.listener == nil {
		return api.ErrInvalidState
	}
	return sc.listener.Start()
}

// Stop requests accept-loop termination.
func (sc *ServerContext) Stop() error {
	if sc.listener == nil {
		return api.ErrInvalidState
	}
	return sc.listener.Stop()
}

// Destroy closes the listener and every control pipe, kills workers
// still running, and waits for their reapers. The counterpart of
// NewServer+Open; the context is unusable afterwards.
func (sc *ServerContext) Destroy() error {
	var first error
	if sc.listener != nil {
		if err := sc.listener.Close(nil); err != nil && first == nil {
			first = err
		}
	}
	for _, w := range sc.workers {
		_ = w.pipe.Close(nil)
		if w.alive.Load() {
			if err := w.proc.Kill(); err != nil && first == nil {
				first = err
			}
		}
	}
	sc.reapers.Wait()
	if sc.listener != nil {
		if err := sc.listener.Uninit(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func closePair(fds [2]int) {
	_ = transport.CloseFD(fds[0])
	_ = transport.CloseFD(fds[1])
}

func workerLabel(i int) string { return strconv.Itoa(i) }
