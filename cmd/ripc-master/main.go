// File: cmd/ripc-master/main.go
//
// Master process: binds the listening socket, spawns the worker pool,
// and hands every accepted connection to a worker over its control
// pipe. Configuration comes from the environment (optionally seeded
// from a .env file); metrics are exposed over HTTP when
// RIPC_METRICS_ADDR is set.

package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ray820328/ripc/control"
	"github.com/ray820328/ripc/distributor"
	"github.com/ray820328/ripc/reactor"
)

func main() {
	envFile := flag.String("env", "", "optional .env file to load before reading the environment")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Error("env file load failed", "path", *envFile, "error", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}

	store := control.NewConfigStore()
	store.LoadEnv()

	reg := prometheus.NewRegistry()
	metrics := control.NewMetrics(reg)
	if addr := os.Getenv("RIPC_METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("metrics endpoint failed", "addr", addr, "error", err)
			}
		}()
		log.Info("metrics exposed", "addr", addr)
	}

	r, err := reactor.New()
	if err != nil {
		log.Error("reactor init failed", "error", err)
		os.Exit(1)
	}
	defer r.Close()
	loop := reactor.NewLoop(r, log)

	cfg := distributor.FromStore(store)
	cfg.Logger = log
	cfg.Metrics = metrics
	if cfg.Spawn.Exec == "" {
		log.Error("RIPC_WORKER_EXEC is required")
		os.Exit(1)
	}

	master := distributor.NewServer(loop, cfg)
	if err := master.Open(); err != nil {
		log.Error("master open failed", "error", err)
		os.Exit(1)
	}
	port, _ := master.BoundPort()
	log.Info("master listening", "addr", cfg.Addr, "port", port,
		"workers", len(master.Workers()))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		log.Info("shutting down", "signal", s.String())
		loop.Post(func() { _ = master.Stop() })
	}()

	if err := master.Start(); err != nil {
		log.Error("master run failed", "error", err)
	}
	if err := master.Destroy(); err != nil {
		log.Warn("master teardown reported errors", "error", err)
	}
}
