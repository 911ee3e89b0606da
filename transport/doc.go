// Package transport implements the pluggable transport contract and
// its three kinds: SocketClient (outbound TCP), SocketServer (listening
// TCP with per-connection data sources), and Pipe (the AF_UNIX control
// channel used to pass accepted connections between processes).
//
// Every transport kind exposes the same capability set — Init, Uninit,
// Open, Close, Start, Stop, Send — and drives all I/O through a
// reactor.Loop. Per-connection state lives in a DataSource: the
// exclusively owned descriptor, a read and a write ring buffer
// (allocated lazily when the connection becomes ready), the lifecycle
// state, and shared references to the protocol handler chain.
//
// All methods except Stop must be called from the loop goroutine or
// before the loop starts; nothing here locks.
package transport
