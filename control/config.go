// File: control/config.go
//
// Thread-safe configuration store with dynamic update and reload
// propagation. Carries the distributor tunables so nothing is held in
// process-global state.

package control

import (
	"os"
	"strconv"
	"sync"
)

// Config keys recognized by the distributor and transports.
const (
	KeyBindAddr       = "bind_addr"
	KeyBindPort       = "bind_port"
	KeyBacklog        = "backlog"
	KeyWorkerCount    = "worker_count"
	KeyWorkerExec     = "worker_exec"
	KeyBufferCapacity = "buffer_capacity"
)

// Defaults applied when a key is absent.
const (
	DefaultBacklog        = 128
	DefaultBufferCapacity = 64 * 1024
)

// ConfigStore is a dynamic key/value map with atomic snapshot and
// listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes an empty config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{config: make(map[string]any)}
}

// Snapshot returns a copy of all config values.
func (cs *ConfigStore) Snapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// Set merges new values and dispatches reload listeners.
func (cs *ConfigStore) Set(newCfg map[string]any) {
	cs.mu.Lock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	listeners := make([]func(), len(cs.listeners))
	copy(listeners, cs.listeners)
	cs.mu.Unlock()
	for _, fn := range listeners {
		go fn()
	}
}

// OnReload registers a listener hook called after each Set.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// GetString returns a string value or def when absent.
func (cs *ConfigStore) GetString(key, def string) string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if v, ok := cs.config[key].(string); ok {
		return v
	}
	return def
}

// GetInt returns an int value or def when absent. String values that
// parse as integers are accepted, matching env-sourced config.
func (cs *ConfigStore) GetInt(key string, def int) int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	switch v := cs.config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// LoadEnv populates the store from process environment variables using
// RIPC_-prefixed names (RIPC_BIND_ADDR, RIPC_BIND_PORT, ...).
func (cs *ConfigStore) LoadEnv() {
	env := map[string]string{
		KeyBindAddr:       "RIPC_BIND_ADDR",
		KeyBindPort:       "RIPC_BIND_PORT",
		KeyBacklog:        "RIPC_BACKLOG",
		KeyWorkerCount:    "RIPC_WORKER_COUNT",
		KeyWorkerExec:     "RIPC_WORKER_EXEC",
		KeyBufferCapacity: "RIPC_BUFFER_CAPACITY",
	}
	vals := make(map[string]any)
	for key, name := range env {
		if v := os.Getenv(name); v != "" {
			vals[key] = v
		}
	}
	if len(vals) > 0 {
		cs.Set(vals)
	}
}
