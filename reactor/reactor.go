// File: reactor/reactor.go
//
// Platform-neutral reactor interface for IO multiplexing.

package reactor

// EventType is a bitmask of fd readiness conditions.
type EventType uint32

const (
	// EventRead signals readable data or a pending accept.
	EventRead EventType = 1 << iota
	// EventWrite signals writable space on the descriptor.
	EventWrite
	// EventError signals an error or hangup condition.
	EventError
)

// Callback handles a readiness notification for one descriptor.
// Callbacks run on the polling goroutine; they must not block.
type Callback func(fd int, events EventType)

// Reactor multiplexes file descriptors and dispatches callbacks.
type Reactor interface {
	// Register adds fd with an interest set and its callback.
	Register(fd int, events EventType, cb Callback) error

	// Modify replaces the interest set of a registered fd.
	Modify(fd int, events EventType) error

	// Unregister removes fd from the watch list.
	Unregister(fd int) error

	// Poll blocks up to timeoutMs (-1 means indefinitely), dispatches
	// ready callbacks, and returns the number dispatched. Interruption
	// by a signal is not an error and reports zero events.
	Poll(timeoutMs int) (int, error)

	// Wakeup unblocks a concurrent Poll. Safe from any goroutine.
	Wakeup() error

	// Close releases the reactor. Registered fds are not closed.
	Close() error
}
