//go:build linux

package reactor_test

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"golang.org/x/sys/unix"

	"github.com/ray820328/ripc/reactor"
)

func pipePair(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollDispatchesRead(t *testing.T) {
	r, err := reactor.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	rd, wr := pipePair(t)

	var gotFd int
	var gotEv reactor.EventType
	if err := r.Register(rd, reactor.EventRead, func(fd int, ev reactor.EventType) {
		gotFd, gotEv = fd, ev
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := unix.Write(wr, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := r.Poll(1000)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 1 {
		t.Fatalf("Poll dispatched %d callbacks, want 1", n)
	}
	if gotFd != rd || gotEv&reactor.EventRead == 0 {
		t.Errorf("callback got fd=%d ev=%v", gotFd, gotEv)
	}
}

func TestUnregisterStopsDispatch(t *testing.T) {
	r, err := reactor.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	rd, wr := pipePair(t)
	fired := false
	if err := r.Register(rd, reactor.EventRead, func(int, reactor.EventType) { fired = true }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Unregister(rd); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	unix.Write(wr, []byte("x"))
	if _, err := r.Poll(50); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if fired {
		t.Error("callback fired after Unregister")
	}
}

func TestWakeupUnblocksPoll(t *testing.T) {
	r, err := reactor.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		_, err := r.Poll(5000)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if err := r.Wakeup(); err != nil {
		t.Fatalf("Wakeup: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Poll after wakeup: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not return after Wakeup")
	}
}

func TestCallbackPanicDoesNotKillPoll(t *testing.T) {
	r, err := reactor.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	rd, wr := pipePair(t)
	if err := r.Register(rd, reactor.EventRead, func(int, reactor.EventType) {
		panic("handler bug")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	unix.Write(wr, []byte("x"))
	if _, err := r.Poll(1000); err != nil {
		t.Fatalf("Poll returned error after callback panic: %v", err)
	}
}

func TestLoopRunStop(t *testing.T) {
	defer leaktest.Check(t)()

	r, err := reactor.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	loop := reactor.NewLoop(r, nil)
	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	ran := make(chan struct{})
	loop.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("posted job never ran")
	}

	loop.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	if loop.Running() {
		t.Error("Running() true after stop")
	}
}

func TestLoopJobsRunOnLoopGoroutine(t *testing.T) {
	defer leaktest.Check(t)()

	r, err := reactor.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	loop := reactor.NewLoop(r, nil)
	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	// Jobs posted from many goroutines are serialized by the loop, so
	// an unsynchronized counter is safe to mutate inside them.
	const posts = 100
	counter := 0
	finished := make(chan struct{})
	for i := 0; i < posts; i++ {
		go loop.Post(func() {
			counter++
			if counter == posts {
				close(finished)
			}
		})
	}
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d/%d jobs ran", counter, posts)
	}

	loop.Stop()
	<-done
}
