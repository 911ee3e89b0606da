// File: control/config_test.go

package control_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ray820328/ripc/control"
)

func TestConfigStoreSetAndGet(t *testing.T) {
	cs := control.NewConfigStore()

	assert.Equal(t, "0.0.0.0", cs.GetString(control.KeyBindAddr, "0.0.0.0"))
	assert.Equal(t, control.DefaultBacklog, cs.GetInt(control.KeyBacklog, control.DefaultBacklog))

	cs.Set(map[string]any{
		control.KeyBindAddr: "127.0.0.1",
		control.KeyBindPort: 9000,
		control.KeyBacklog:  "256", // env-style string int
	})
	assert.Equal(t, "127.0.0.1", cs.GetString(control.KeyBindAddr, ""))
	assert.Equal(t, 9000, cs.GetInt(control.KeyBindPort, 0))
	assert.Equal(t, 256, cs.GetInt(control.KeyBacklog, 0))

	// Non-integer strings fall back to the default.
	cs.Set(map[string]any{control.KeyWorkerCount: "many"})
	assert.Equal(t, 4, cs.GetInt(control.KeyWorkerCount, 4))
}

func TestConfigStoreSnapshotIsACopy(t *testing.T) {
	cs := control.NewConfigStore()
	cs.Set(map[string]any{control.KeyBindPort: 8080})

	snap := cs.Snapshot()
	snap[control.KeyBindPort] = 1
	assert.Equal(t, 8080, cs.GetInt(control.KeyBindPort, 0))
}

func TestConfigStoreReloadListeners(t *testing.T) {
	cs := control.NewConfigStore()
	fired := make(chan struct{}, 2)
	cs.OnReload(func() { fired <- struct{}{} })
	cs.OnReload(func() { fired <- struct{}{} })

	cs.Set(map[string]any{control.KeyBacklog: 64})
	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("reload listener did not fire")
		}
	}
}

func TestConfigStoreLoadEnv(t *testing.T) {
	t.Setenv("RIPC_BIND_ADDR", "10.0.0.1")
	t.Setenv("RIPC_WORKER_COUNT", "5")
	t.Setenv("RIPC_WORKER_EXEC", "/usr/libexec/ripc-worker")

	cs := control.NewConfigStore()
	cs.LoadEnv()

	assert.Equal(t, "10.0.0.1", cs.GetString(control.KeyBindAddr, ""))
	assert.Equal(t, 5, cs.GetInt(control.KeyWorkerCount, 0))
	assert.Equal(t, "/usr/libexec/ripc-worker", cs.GetString(control.KeyWorkerExec, ""))
	// Unset keys stay at defaults.
	assert.Equal(t, control.DefaultBufferCapacity, cs.GetInt(control.KeyBufferCapacity, control.DefaultBufferCapacity))
}

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := control.NewMetrics(reg)

	m.IncAccepted()
	m.AddBytesIn(100)
	m.AddBytesOut(40)
	m.IncShortWrite()
	m.Handoffs.WithLabelValues("0").Inc()

	fams, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, f := range fams {
		found[f.GetName()] = true
	}
	assert.True(t, found["ripc_connections_accepted_total"], "families: %v", found)
	assert.True(t, found["ripc_bytes_in_total"])
	assert.True(t, found["ripc_handoffs_total"])
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *control.Metrics
	m.IncAccepted()
	m.IncClosed()
	m.AddBytesIn(1)
	m.AddBytesOut(1)
	m.IncCompaction()
	m.IncShortWrite()
}
