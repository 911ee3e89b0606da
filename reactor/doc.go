// Package reactor implements the single-threaded cooperative event loop
// that drives all socket and pipe I/O in one process.
//
// A Reactor multiplexes file descriptors and dispatches readiness
// callbacks; a Loop owns one Reactor, pumps it until stopped, and runs
// deferred jobs posted from callbacks or other goroutines between
// dispatch passes. All callbacks for one connection run on the loop
// goroutine in submission order, so per-connection state needs no
// locking.
//
// The Linux implementation is epoll(7) based; other platforms get a
// stub that reports api.ErrNotSupported.
package reactor
