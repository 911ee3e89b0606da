// File: distributor/childworker.go
//
// Worker process bookkeeping on the master side: spawn options, the
// spawned process handle, and the master's end of the control pipe.

package distributor

import (
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/ray820328/ripc/transport"
)

// SpawnOptions describe how to launch one worker executable.
type SpawnOptions struct {
	// Exec is the worker binary path.
	Exec string
	// Args is the argument vector, excluding the program name.
	Args []string
	// Env is the environment; nil inherits the master's.
	Env []string
}

// Process is the handle to one spawned worker.
type Process interface {
	// PID identifies the process for logs.
	PID() int
	// Wait blocks until exit and reports how it ended.
	Wait() (status string, err error)
	// Kill forcibly terminates the process.
	Kill() error
}

// Spawner launches a worker wired to controlFD. Pluggable so tests can
// run the worker end in-process over the same socketpair.
type Spawner func(opts SpawnOptions, controlFD int) (Process, error)

// ExecSpawner launches the worker executable with the control pipe as
// its standard input, stdout discarded, stderr inherited.
func ExecSpawner(opts SpawnOptions, controlFD int) (Process, error) {
	if opts.Exec == "" {
		return nil, fmt.Errorf("spawn: empty worker executable path")
	}
	f := os.NewFile(uintptr(controlFD), "control-pipe")
	if f == nil {
		return nil, fmt.Errorf("spawn: bad control descriptor %d", controlFD)
	}
	cmd := exec.Command(opts.Exec, opts.Args...)
	cmd.Stdin = f
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	cmd.Env = opts.Env
	if err := cmd.Start(); err != nil {
		f.Close()
		return nil, fmt.Errorf("spawn %s: %w", opts.Exec, err)
	}
	// The child holds its own reference now.
	f.Close()
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait() (string, error) {
	err := p.cmd.Wait()
	ps := p.cmd.ProcessState
	if ps == nil {
		return "unknown", err
	}
	return exitStatus(ps), nil
}

func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }

// ChildWorker is the master-side record for one worker: the control
// pipe (owned), the process handle (owned), and the options it was
// spawned with. The worker array is built once at server start and
// never resized.
type ChildWorker struct {
	index int
	pipe  *transport.Pipe
	proc  Process
	opts  SpawnOptions

	// alive flips to false from the reaper goroutine.
	alive atomic.Bool

	// handoffs counts connections delivered to this worker.
	handoffs atomic.Int64
}

// Index returns the worker's slot in the array.
func (w *ChildWorker) Index() int { return w.index }

// Alive reports whether the process is still running.
func (w *ChildWorker) Alive() bool { return w.alive.Load() }

// Handoffs reports how many connections this worker has received.
func (w *ChildWorker) Handoffs() int64 { return w.handoffs.Load() }
