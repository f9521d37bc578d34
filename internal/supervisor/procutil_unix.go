//go:build !windows

package supervisor

import (
	"os"
	"syscall"
)

// gracefulTerminate sends SIGTERM so the backend can flush its project state
// before exiting.
func gracefulTerminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
