// File: fake/transport_test.go

package fake_test

import (
	"errors"
	"testing"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/fake"
)

func TestFakeTransportFollowsLifecycle(t *testing.T) {
	f := fake.NewTransport()

	if _, err := f.Send(nil, []byte("early")); !errors.Is(err, api.ErrInvalidState) {
		t.Fatalf("send before open: %v", err)
	}
	if err := f.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := f.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.State() != api.StateReady {
		t.Fatalf("state = %v, want %v", f.State(), api.StateReady)
	}

	n, err := f.Send(nil, []byte("payload"))
	if err != nil || n != 7 {
		t.Fatalf("send = (%d, %v)", n, err)
	}
	sent := f.Sent()
	if len(sent) != 1 || string(sent[0]) != "payload" {
		t.Fatalf("sent = %q", sent)
	}

	if err := f.Close(nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := f.Close(nil); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := f.Check(); err == nil {
		t.Fatal("check should fail after close")
	}
	if err := f.Uninit(); err != nil {
		t.Fatalf("uninit: %v", err)
	}
}

func TestFakeTransportScriptedFailure(t *testing.T) {
	f := fake.NewTransport()
	f.SendErr = api.ErrBackpressure
	if err := f.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := f.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Send(nil, []byte("x")); !errors.Is(err, api.ErrBackpressure) {
		t.Fatalf("send: %v", err)
	}
}
