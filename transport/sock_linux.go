//go:build linux
// +build linux

// File: transport/sock_linux.go
//
// Raw non-blocking socket operations for the Linux backend. All
// descriptors are created non-blocking and close-on-exec; readiness
// comes from the reactor, never from blocking syscalls.

package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func newTCPSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	return fd, nil
}

func sockaddrInet4(addr string, port int) (*unix.SockaddrInet4, error) {
	sa := &unix.SockaddrInet4{Port: port}
	if addr == "" {
		return sa, nil
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, fmt.Errorf("bad IPv4 address %q", addr)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("address %q is not IPv4", addr)
	}
	copy(sa.Addr[:], v4)
	return sa, nil
}

func bindListen(fd int, addr string, port, backlog int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	sa, err := sockaddrInet4(addr, port)
	if err != nil {
		return err
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("bind %s:%d: %w", addr, port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// localPort reports the bound port, needed when binding port 0.
func localPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		return v4.Port, nil
	}
	return 0, fmt.Errorf("unexpected sockaddr kind %T", sa)
}

func acceptConn(fd int) (int, string, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, "", errAgain
		}
		return -1, "", fmt.Errorf("accept: %w", err)
	}
	return nfd, sockaddrString(sa), nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%s:%d", net.IP(v.Addr[:]).String(), v.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%s]:%d", net.IP(v.Addr[:]).String(), v.Port)
	default:
		return ""
	}
}

// connectFd starts a non-blocking connect. pending is true when the
// handshake continues asynchronously (EINPROGRESS).
func connectFd(fd int, addr string, port int) (pending bool, err error) {
	if addr == "" {
		addr = "127.0.0.1"
	}
	sa, err := sockaddrInet4(addr, port)
	if err != nil {
		return false, err
	}
	err = unix.Connect(fd, sa)
	switch err {
	case nil:
		return false, nil
	case unix.EINPROGRESS:
		return true, nil
	default:
		return false, fmt.Errorf("connect %s:%d: %w", addr, port, err)
	}
}

// soError fetches and clears the pending socket error after an
// asynchronous connect completes.
func soError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

func setNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

func readFd(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, errAgain
		}
		if err == unix.EINTR {
			return 0, errAgain
		}
		return 0, fmt.Errorf("read fd %d: %w", fd, err)
	}
	return n, nil
}

func writeFd(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, errAgain
		}
		return 0, fmt.Errorf("write fd %d: %w", fd, err)
	}
	return n, nil
}

func closeFd(fd int) error {
	return unix.Close(fd)
}

// CloseFD releases a raw descriptor obtained from SocketPair or a
// handoff. Exposed for composition layers that own bare descriptors.
func CloseFD(fd int) error { return closeFd(fd) }

// SocketPair opens a connected AF_UNIX stream pair, the control-pipe
// substrate for cross-process descriptor handoff. Both ends are
// non-blocking; end [1] is intended for the spawned process and is
// deliberately not close-on-exec.
func SocketPair() ([2]int, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return [2]int{-1, -1}, fmt.Errorf("socketpair: %w", err)
	}
	unix.CloseOnExec(fds[0])
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return [2]int{-1, -1}, fmt.Errorf("socketpair nonblock: %w", err)
		}
	}
	return fds, nil
}

// sendMsgFD writes payload with passFd attached as SCM_RIGHTS
// ancillary data. The receiving process gets its own descriptor
// referring to the same open connection.
func sendMsgFD(fd int, payload []byte, passFd int) error {
	rights := unix.UnixRights(passFd)
	if err := unix.Sendmsg(fd, payload, rights, nil, unix.MSG_DONTWAIT); err != nil {
		return fmt.Errorf("sendmsg fd-pass: %w", err)
	}
	return nil
}

// recvMsgFD reads one control-pipe message, returning the payload
// length and any descriptors recovered from ancillary data.
func recvMsgFD(fd int, p []byte) (int, []int, error) {
	oob := make([]byte, unix.CmsgSpace(4*4))
	n, oobn, _, _, err := unix.Recvmsg(fd, p, oob, unix.MSG_DONTWAIT|unix.MSG_CMSG_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, nil, errAgain
		}
		return 0, nil, fmt.Errorf("recvmsg: %w", err)
	}
	var fds []int
	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return n, nil, fmt.Errorf("parse control message: %w", err)
		}
		for _, m := range cmsgs {
			got, err := unix.ParseUnixRights(&m)
			if err != nil {
				continue
			}
			for _, g := range got {
				_ = unix.SetNonblock(g, true)
				fds = append(fds, g)
			}
		}
	}
	return n, fds, nil
}
