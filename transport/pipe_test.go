//go:build linux

package transport_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/reactor"
	"github.com/ray820328/ripc/transport"
)

func openPipe(t *testing.T, loop *reactor.Loop, fd int, cfg transport.PipeConfig) *transport.Pipe {
	t.Helper()
	p := transport.NewPipe(loop, fd, cfg)
	if err := p.Init(); err != nil {
		t.Fatalf("pipe Init: %v", err)
	}
	if err := p.Open(); err != nil {
		t.Fatalf("pipe Open: %v", err)
	}
	t.Cleanup(func() { p.Close(nil) })
	return p
}

func TestPipePayloadRoundTrip(t *testing.T) {
	fds, err := transport.SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %v", err)
	}
	loop := testLoop(t)

	var got []byte
	openPipe(t, loop, fds[1], transport.PipeConfig{
		OnPayload: func(p []byte) { got = append([]byte(nil), p...) },
	})
	master := openPipe(t, loop, fds[0], transport.PipeConfig{})

	if _, err := master.Send(nil, []byte{0x2a}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	pump(t, loop, func() bool { return got != nil })
	if len(got) != 1 || got[0] != 0x2a {
		t.Errorf("payload = %v, want [42]", got)
	}
}

func TestPipeDescriptorHandoff(t *testing.T) {
	fds, err := transport.SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %v", err)
	}
	loop := testLoop(t)

	var adopted int = -1
	openPipe(t, loop, fds[1], transport.PipeConfig{
		OnFD: func(fd int) { adopted = fd },
	})
	master := openPipe(t, loop, fds[0], transport.PipeConfig{})

	// A real connected socket pair; one end rides the control pipe.
	pair, err := transport.SocketPair()
	if err != nil {
		t.Fatalf("conn SocketPair: %v", err)
	}
	defer unix.Close(pair[1])

	// One dummy byte with the connection's descriptor attached.
	if err := master.SendWithFD([]byte{0}, pair[0]); err != nil {
		t.Fatalf("SendWithFD: %v", err)
	}
	// Sender's duplicate is no longer needed once passed.
	unix.Close(pair[0])

	pump(t, loop, func() bool { return adopted >= 0 })
	defer unix.Close(adopted)

	// The recovered descriptor must refer to the same open connection.
	msg := []byte("through the handoff")
	if _, err := unix.Write(adopted, msg); err != nil {
		t.Fatalf("write via adopted fd: %v", err)
	}
	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := unix.Read(pair[1], buf)
		if err == unix.EAGAIN {
			if time.Now().After(deadline) {
				t.Fatal("no data through handed-off connection")
			}
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("read peer: %v", err)
		}
		if got := string(buf[:n]); got != string(msg) {
			t.Errorf("peer got %q, want %q", got, msg)
		}
		break
	}
}

func TestPipePeerCloseDetected(t *testing.T) {
	fds, err := transport.SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %v", err)
	}
	loop := testLoop(t)

	var gone bool
	worker := openPipe(t, loop, fds[1], transport.PipeConfig{
		OnClosed: func() { gone = true },
	})
	unix.Close(fds[0])

	pump(t, loop, func() bool { return gone })
	if worker.State() != api.StateClosed {
		t.Errorf("pipe state after peer close = %v", worker.State())
	}
	// Close after peer-close remains a no-op.
	if err := worker.Close(nil); err != nil {
		t.Errorf("Close after teardown: %v", err)
	}
}

func TestPipeRejectsDataSourceArgs(t *testing.T) {
	fds, err := transport.SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %v", err)
	}
	defer unix.Close(fds[1])
	loop := testLoop(t)
	p := openPipe(t, loop, fds[0], transport.PipeConfig{})
	if _, err := p.Send(&transport.DataSource{}, []byte("x")); err != api.ErrInvalidArgument {
		t.Errorf("Send with source = %v, want ErrInvalidArgument", err)
	}
}
