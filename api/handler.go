// File: api/handler.go
//
// Handler-chain contract: pluggable encode/decode processors applied to
// payloads crossing the transport boundary.

package api

// Source is the view of a connection a handler sees. Implemented by
// transport.DataSource.
type Source interface {
	// ID returns the connection's unique identifier.
	ID() string
	// State returns the current lifecycle state.
	State() State
}

// Handler transforms a payload for one direction of a connection.
// An inbound handler decodes raw transport bytes into an application
// payload; an outbound handler frames an application payload for the
// wire. Returning an error aborts the send or receive without closing
// the connection; the caller decides what to do next.
//
// Handlers are shared references: one handler instance may serve many
// sources, and the application owns its lifetime.
type Handler interface {
	Process(src Source, payload []byte) ([]byte, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(src Source, payload []byte) ([]byte, error)

// Process calls f.
func (f HandlerFunc) Process(src Source, payload []byte) ([]byte, error) {
	return f(src, payload)
}

// Optional transport hooks. A transport kind that does not implement
// one simply does not use it; callers discover them by type assertion.
type (
	// Receiver is implemented by transports that surface decoded
	// inbound payloads through a push callback.
	Receiver interface {
		Receive(src Source, payload []byte) error
	}

	// Checker is implemented by transports with a health probe.
	Checker interface {
		Check() error
	}

	// ErrorReporter is implemented by transports that expose an error
	// notification hook to the application.
	ErrorReporter interface {
		OnError(src Source, err error)
	}
)
