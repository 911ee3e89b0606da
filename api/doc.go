// Package api defines the contracts shared by every transport kind:
// the connection lifecycle state machine, the handler-chain interfaces
// applied to payloads crossing the transport boundary, structured error
// types, and the optional capability hooks a transport may implement.
//
// Implementations live in the buffer, reactor, transport and
// distributor packages; api itself holds no I/O.
package api
