// File: transport/conn.go
//
// Shared per-connection servicing for socket transports: the read
// path (socket → read buffer → inbound handler → application), the
// write path (outbound handler → write buffer → socket, acknowledged
// bytes skipped), and idempotent teardown.

package transport

import (
	"log/slog"

	"github.com/ray820328/ripc/api"
	"github.com/ray820328/ripc/reactor"
)

// connIO services established connections on one loop. It is embedded
// by SocketClient and SocketServer; onClosed lets the owner do its own
// bookkeeping when a source dies.
type connIO struct {
	loop    *reactor.Loop
	cfg     *Config
	log     *slog.Logger
	scratch []byte

	// onClosed runs after a source is torn down, before cfg.OnClose.
	onClosed func(ds *DataSource)
}

func newConnIO(loop *reactor.Loop, cfg *Config, onClosed func(*DataSource)) *connIO {
	return &connIO{
		loop:     loop,
		cfg:      cfg,
		log:      cfg.Logger,
		scratch:  make([]byte, 32*1024),
		onClosed: onClosed,
	}
}

// ready completes a source's handshake: buffers are allocated here,
// lazily, exactly once, and the descriptor joins the reactor.
func (c *connIO) ready(ds *DataSource) error {
	if err := ds.transition(api.StateReady); err != nil {
		return err
	}
	ds.ensureBuffers(c.cfg.BufferCapacity)
	if c.cfg.NoDelay {
		if err := setNoDelay(ds.fd); err != nil {
			c.log.Warn("set TCP_NODELAY failed", "source", ds.id, "error", err)
		}
	}
	if err := c.loop.Reactor().Register(ds.fd, reactor.EventRead, func(fd int, ev reactor.EventType) {
		c.onEvent(ds, ev)
	}); err != nil {
		return err
	}
	if c.cfg.OnOpen != nil {
		c.cfg.OnOpen(ds)
	}
	return nil
}

func (c *connIO) interest(ds *DataSource) reactor.EventType {
	var ev reactor.EventType
	if !ds.readPaused {
		ev |= reactor.EventRead
	}
	if ds.wantWrite {
		ev |= reactor.EventWrite
	}
	return ev
}

func (c *connIO) updateInterest(ds *DataSource) {
	if ds.state == api.StateClosed {
		return
	}
	if err := c.loop.Reactor().Modify(ds.fd, c.interest(ds)); err != nil {
		c.log.Warn("reactor modify failed", "source", ds.id, "error", err)
	}
}

func (c *connIO) onEvent(ds *DataSource, ev reactor.EventType) {
	if ev&reactor.EventError != 0 {
		c.fail(ds, api.ErrClosed)
		return
	}
	if ev&reactor.EventWrite != 0 {
		c.serviceWrite(ds)
	}
	if ev&reactor.EventRead != 0 && ds.state != api.StateClosed {
		c.serviceRead(ds)
	}
}

// serviceRead drains the socket into the read buffer and pushes
// decoded payloads to the application. When the buffer is full even
// after compaction, reading pauses: TCP backpressure propagates to the
// peer until the handler chain catches up.
func (c *connIO) serviceRead(ds *DataSource) {
	for ds.state != api.StateClosed {
		free := ds.rbuf.Free()
		if free == 0 {
			if ds.rbuf.Rewind() > 0 {
				c.cfg.Metrics.IncCompaction()
			}
			free = ds.rbuf.Free()
		}
		if free == 0 {
			ds.readPaused = true
			c.updateInterest(ds)
			return
		}

		chunk := c.scratch
		if free < len(chunk) {
			chunk = chunk[:free]
		}
		n, err := readFd(ds.fd, chunk)
		if err == errAgain {
			return
		}
		if err != nil {
			c.fail(ds, err)
			return
		}
		if n == 0 { // peer closed
			c.closeSource(ds)
			return
		}
		ds.rbuf.Write(chunk[:n]) // sized to free space, never short
		c.cfg.Metrics.AddBytesIn(n)
		c.deliver(ds)
		if n < len(chunk) {
			return // socket drained
		}
	}
}

// deliver runs the readable span through the inbound handler and hands
// the result to the application. A handler error aborts this receive
// without closing the connection; the bytes stay buffered.
func (c *connIO) deliver(ds *DataSource) {
	span := ds.rbuf.Peek()
	if len(span) == 0 {
		return
	}
	payload := span
	if ds.in != nil {
		decoded, err := ds.in.Process(ds, span)
		if err != nil {
			c.log.Warn("inbound handler rejected payload",
				"source", ds.id, "bytes", len(span), "error", err)
			if c.cfg.OnError != nil {
				c.cfg.OnError(ds, api.ErrHandlerAbort)
			}
			return
		}
		payload = decoded
	}
	ds.rbuf.Skip(len(span))
	if ds.readPaused && ds.rbuf.Free() > 0 {
		ds.readPaused = false
		c.updateInterest(ds)
	}
	if c.cfg.OnMessage != nil {
		c.cfg.OnMessage(ds, payload)
	}
}

// send implements the Transport send contract for one source.
func (c *connIO) send(ds *DataSource, payload []byte) (int, error) {
	if ds == nil {
		return 0, api.ErrInvalidArgument
	}
	if ds.state != api.StateReady && ds.state != api.StateStart {
		return 0, api.NewError(api.ErrCodeInvalidState, "send on source not ready").
			WithContext("state", ds.state.String()).
			Wrap(api.ErrInvalidState)
	}
	framed := payload
	if ds.out != nil {
		encoded, err := ds.out.Process(ds, payload)
		if err != nil {
			return 0, api.NewError(api.ErrCodeProtocol, "outbound handler rejected payload").
				Wrap(api.ErrHandlerAbort)
		}
		framed = encoded
	}
	n := ds.wbuf.Write(framed)
	if n < len(framed) {
		c.cfg.Metrics.IncShortWrite()
	}
	if err := c.flushWrite(ds); err != nil {
		return n, err
	}
	if n < len(framed) {
		return n, api.ErrBackpressure
	}
	return n, nil
}

// flushWrite issues a write of exactly the buffered readable span and
// skips whatever the transport acknowledged.
func (c *connIO) flushWrite(ds *DataSource) error {
	span := ds.wbuf.Peek()
	if len(span) == 0 {
		if ds.wantWrite {
			ds.wantWrite = false
			c.updateInterest(ds)
		}
		return nil
	}
	n, err := writeFd(ds.fd, span)
	if err == errAgain {
		if !ds.wantWrite {
			ds.wantWrite = true
			c.updateInterest(ds)
		}
		return nil
	}
	if err != nil {
		c.fail(ds, err)
		return err
	}
	ds.wbuf.Skip(n)
	c.cfg.Metrics.AddBytesOut(n)
	want := ds.wbuf.Len() > 0
	if want != ds.wantWrite {
		ds.wantWrite = want
		c.updateInterest(ds)
	}
	return nil
}

func (c *connIO) serviceWrite(ds *DataSource) {
	_ = c.flushWrite(ds)
}

// fail closes a source because of a connection-local I/O error. The
// error stays local: logged and reported through OnError, never
// propagated as a crash.
func (c *connIO) fail(ds *DataSource, err error) {
	if ds.state == api.StateClosed {
		return
	}
	c.log.Warn("connection error, closing source",
		"source", ds.id, "peer", ds.peer, "error", err)
	c.closeSource(ds)
	if c.cfg.OnError != nil {
		c.cfg.OnError(ds, err)
	}
}

// closeSource tears a source down. Idempotent: a second close is a
// no-op. Buffers are released only after the descriptor is confirmed
// closed, never before.
func (c *connIO) closeSource(ds *DataSource) error {
	if ds == nil || ds.state == api.StateClosed {
		return nil
	}
	if _, err := api.Transition(ds.state, api.StateClosed); err != nil {
		return err
	}
	if ds.fd >= 0 {
		if err := c.loop.Reactor().Unregister(ds.fd); err != nil {
			c.log.Debug("unregister on close", "source", ds.id, "error", err)
		}
		if err := closeFd(ds.fd); err != nil {
			c.log.Warn("close descriptor", "source", ds.id, "error", err)
		}
		ds.fd = -1
	}
	ds.state = api.StateClosed
	ds.releaseBuffers()
	c.cfg.Metrics.IncClosed()
	if c.onClosed != nil {
		c.onClosed(ds)
	}
	if c.cfg.OnClose != nil {
		c.cfg.OnClose(ds)
	}
	return nil
}
