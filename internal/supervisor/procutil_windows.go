//go:build windows

package supervisor

import "os"

// gracefulTerminate terminates the process. On Windows, Process.Signal only
// supports os.Kill, so we use that directly (TerminateProcess).
func gracefulTerminate(p *os.Process) error {
	return p.Kill()
}
