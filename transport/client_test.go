//go:build linux

package transport_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/transport"
)

func TestClientConnectSendReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	loop := testLoop(t)
	var opened bool
	var gotMsg []byte
	cli := transport.NewSocketClient(loop, transport.Config{
		Addr: "127.0.0.1",
		Port: port,
		OnOpen: func(*transport.DataSource) { opened = true },
		OnMessage: func(_ *transport.DataSource, p []byte) {
			gotMsg = append([]byte(nil), p...)
		},
	})
	if err := cli.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := cli.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := cli.State(); got != api.StateReadyPending && got != api.StateReady {
		t.Fatalf("state after Open = %v", got)
	}

	pump(t, loop, func() bool { return opened })
	if err := cli.Check(); err != nil {
		t.Fatalf("Check after connect: %v", err)
	}

	peer := <-accepted
	defer peer.Close()

	if _, err := cli.Send(nil, []byte("hello from client")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from client" {
		t.Errorf("peer got %q", got)
	}

	if _, err := peer.Write([]byte("pong")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	pump(t, loop, func() bool { return gotMsg != nil })
	if string(gotMsg) != "pong" {
		t.Errorf("client got %q, want pong", gotMsg)
	}

	if err := cli.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := cli.Close(nil); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := cli.Uninit(); err != nil {
		t.Fatalf("Uninit: %v", err)
	}
}

func TestClientConnectRefusedStaysLocal(t *testing.T) {
	// Find a port with nothing listening by grabbing and releasing it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	loop := testLoop(t)
	var failed error
	cli := transport.NewSocketClient(loop, transport.Config{
		Addr: "127.0.0.1",
		Port: port,
		OnError: func(_ *transport.DataSource, err error) { failed = err },
	})
	if err := cli.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := cli.Open(); err != nil {
		// Synchronous refusal is also a valid, recoverable outcome.
		return
	}
	pump(t, loop, func() bool { return failed != nil })
	if cli.Source().State() != api.StateClosed {
		t.Errorf("source state after refusal = %v", cli.Source().State())
	}
}

func TestClientSendBeforeReadyFails(t *testing.T) {
	loop := testLoop(t)
	cli := transport.NewSocketClient(loop, transport.Config{Addr: "127.0.0.1", Port: 1})
	if err := cli.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// No Open: the source is still in StateInit.
	if _, err := cli.Send(nil, []byte("x")); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("Send before open = %v, want ErrInvalidState", err)
	}
	in, out := cli.Source().Buffered()
	if in != 0 || out != 0 {
		t.Errorf("failed send had side effects: in=%d out=%d", in, out)
	}
}

func TestClientBadAddressIsConfigError(t *testing.T) {
	loop := testLoop(t)
	cli := transport.NewSocketClient(loop, transport.Config{Addr: "not-an-ip", Port: 80})
	if err := cli.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	err := cli.Open()
	if err == nil {
		t.Fatal("Open with bad address succeeded")
	}
	var se *api.Error
	if !errors.As(err, &se) || se.Code != api.ErrCodeConfig {
		t.Errorf("Open error = %v, want ErrCodeConfig", err)
	}
}
