// Package netutil holds small networking helpers shared by the supervisor
// and tests.
package netutil

import (
	"fmt"
	"net"
	"time"
)

// AllocatePort asks the kernel for an unused loopback TCP port by binding
// :0, then releases the socket and returns the assigned port.
//
// The port is free at return time only; the caller's readiness polling has
// to absorb the window between release and the child process's own bind.
func AllocatePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener addr: %s", l.Addr())
	}
	return addr.Port, nil
}

// IsPortBusy reports whether something is already listening on the loopback
// port.
func IsPortBusy(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return true
	}
	return false
}
