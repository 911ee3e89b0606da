// File: reactor/loop.go
//
// Loop drives one Reactor on a single goroutine with a deferred-job
// queue for work posted from callbacks or from other goroutines.

package reactor

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Loop owns a Reactor and pumps it until stopped. Run parks the calling
// goroutine; readiness callbacks and posted jobs all execute on that
// goroutine, so everything they touch needs no locking.
type Loop struct {
	r   Reactor
	log *slog.Logger

	mu   sync.Mutex
	jobs *queue.Queue

	running atomic.Bool
}

// NewLoop wraps a Reactor. A nil logger falls back to slog.Default.
func NewLoop(r Reactor, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{r: r, log: log, jobs: queue.New()}
}

// Reactor exposes the underlying reactor for fd registration.
func (l *Loop) Reactor() Reactor { return l.r }

// Post enqueues a job to run on the loop goroutine after the current
// dispatch pass. Safe from any goroutine.
func (l *Loop) Post(job func()) {
	l.mu.Lock()
	l.jobs.Add(job)
	l.mu.Unlock()
	if err := l.r.Wakeup(); err != nil {
		l.log.Warn("loop wakeup failed", "error", err)
	}
}

// Running reports whether Run is currently pumping.
func (l *Loop) Running() bool { return l.running.Load() }

// Run pumps the reactor until Stop is called or polling fails with an
// unrecoverable error. Blocking and cooperative: the caller's goroutine
// becomes the loop thread.
func (l *Loop) Run() error {
	if !l.running.CompareAndSwap(false, true) {
		return nil
	}
	for l.running.Load() {
		l.drainJobs()
		if !l.running.Load() {
			break
		}
		if _, err := l.r.Poll(-1); err != nil {
			l.running.Store(false)
			l.log.Error("reactor poll failed", "error", err)
			return err
		}
	}
	l.drainJobs()
	return nil
}

// Stop requests loop termination. It does not close connections; it
// only unparks Run. Safe from any goroutine, idempotent.
func (l *Loop) Stop() {
	if l.running.CompareAndSwap(true, false) {
		if err := l.r.Wakeup(); err != nil {
			l.log.Warn("loop wakeup failed", "error", err)
		}
	}
}

func (l *Loop) drainJobs() {
	for {
		l.mu.Lock()
		if l.jobs.Length() == 0 {
			l.mu.Unlock()
			return
		}
		job := l.jobs.Remove().(func())
		l.mu.Unlock()
		job()
	}
}
