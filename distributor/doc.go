// Package distributor composes the multi-process connection
// distributor: a master process accepts TCP connections on one
// listening socket and hands each live connection to a pre-spawned
// worker process, selected round robin, over a per-worker control
// pipe carrying the descriptor as SCM_RIGHTS ancillary data.
//
// Each worker runs its own single-threaded reactor over its own
// connection set; processes share no memory, so the only cross-process
// coordination is the one-way descriptor handoff and the master-local
// round-robin counter. A crashed worker is logged and stops receiving
// handoffs once its pipe is gone; the master neither respawns it nor
// reroutes — that is an explicit extension point.
package distributor
