// Package control holds the runtime plumbing shared by master and
// worker processes: a dynamic configuration store with reload
// listeners, and the Prometheus metrics exported by the transport and
// distributor layers.
package control
