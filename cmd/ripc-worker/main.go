// File: cmd/ripc-worker/main.go
//
// Worker process: inherits its control pipe on stdin, adopts the
// connection descriptors the master passes down, and services them
// with a byte-for-byte echo handler. Real deployments replace the
// handler wiring; the process skeleton stays the same.

package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ray820328/ripc/control"
	"github.com/ray820328/ripc/distributor"
	"github.com/ray820328/ripc/reactor"
	"github.com/ray820328/ripc/transport"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("pid", os.Getpid())
	slog.SetDefault(log)

	_ = godotenv.Load()
	store := control.NewConfigStore()
	store.LoadEnv()

	r, err := reactor.New()
	if err != nil {
		log.Error("reactor init failed", "error", err)
		os.Exit(1)
	}
	defer r.Close()
	loop := reactor.NewLoop(r, log)

	var srv *transport.SocketServer
	worker := distributor.NewWorker(loop, distributor.ControlFD, distributor.WorkerConfig{
		Conns: transport.Config{
			BufferCapacity: store.GetInt(control.KeyBufferCapacity, control.DefaultBufferCapacity),
			NoDelay:        true,
			OnMessage: func(ds *transport.DataSource, payload []byte) {
				if _, err := srv.Send(ds, payload); err != nil {
					log.Warn("echo send failed", "source", ds.ID(), "error", err)
				}
			},
		},
		Logger: log,
	})
	srv = worker.Server()

	if err := worker.Open(); err != nil {
		log.Error("worker open failed", "error", err)
		os.Exit(1)
	}
	log.Info("worker ready")

	// Run returns when the master closes the control pipe.
	if err := worker.Run(); err != nil {
		log.Error("worker run failed", "error", err)
	}
	if err := worker.Close(); err != nil {
		log.Warn("worker teardown reported errors", "error", err)
	}
	log.Info("worker exiting")
}
