//go:build linux
// +build linux

// File: distributor/status_linux.go

package distributor

import (
	"fmt"
	"os"
	"syscall"
)

// exitStatus renders how a worker process ended, naming the fatal
// signal when there was one.
func exitStatus(ps *os.ProcessState) string {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return fmt.Sprintf("signal:%s", ws.Signal())
	}
	return fmt.Sprintf("exit:%d", ps.ExitCode())
}
