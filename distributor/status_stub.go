//go:build !linux
// +build !linux

// File: distributor/status_stub.go

package distributor

import (
	"fmt"
	"os"
)

func exitStatus(ps *os.ProcessState) string {
	return fmt.Sprintf("exit:%d", ps.ExitCode())
}
