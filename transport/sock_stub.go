//go:build !linux
// +build !linux

// File: transport/sock_stub.go
//
// Stubs for platforms without the raw-socket backend.

package transport

import "github.com/ray820328/ripc/api"

func newTCPSocket() (int, error)                       { return -1, api.ErrNotSupported }
func bindListen(int, string, int, int) error           { return api.ErrNotSupported }
func localPort(int) (int, error)                       { return 0, api.ErrNotSupported }
func acceptConn(int) (int, string, error)              { return -1, "", api.ErrNotSupported }
func connectFd(int, string, int) (bool, error)         { return false, api.ErrNotSupported }
func soError(int) error                                { return api.ErrNotSupported }
func setNoDelay(int) error                             { return api.ErrNotSupported }
func setNonblock(int) error                            { return api.ErrNotSupported }
func readFd(int, []byte) (int, error)                  { return 0, api.ErrNotSupported }
func writeFd(int, []byte) (int, error)                 { return 0, api.ErrNotSupported }
func closeFd(int) error                                { return api.ErrNotSupported }
func sendMsgFD(int, []byte, int) error                 { return api.ErrNotSupported }
func recvMsgFD(int, []byte) (int, []int, error)        { return 0, nil, api.ErrNotSupported }

// CloseFD is unavailable without the Linux backend.
func CloseFD(int) error { return api.ErrNotSupported }

// SocketPair is unavailable without the Linux backend.
func SocketPair() ([2]int, error) { return [2]int{-1, -1}, api.ErrNotSupported }
