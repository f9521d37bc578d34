package supervisor

import "fmt"

type alreadyRunningError struct{}

func (alreadyRunningError) Error() string {
	return "supervisor: backend already started; stop it before starting again"
}

// IsAlreadyRunning reports whether err means Start was called while the
// supervisor was neither idle nor stopped.
func IsAlreadyRunning(err error) bool {
	_, ok := err.(alreadyRunningError)
	return ok
}

type spawnError struct {
	bin string
	err error
}

func (e spawnError) Error() string {
	return fmt.Sprintf("supervisor: spawn %s: %v", e.bin, e.err)
}

func (e spawnError) Unwrap() error { return e.err }

// IsSpawn reports whether err means the backend binary could not be started.
func IsSpawn(err error) bool {
	_, ok := err.(spawnError)
	return ok
}

type earlyExitError struct {
	pid  int
	err  error
	tail string
}

func (e earlyExitError) Error() string {
	if e.tail != "" {
		return fmt.Sprintf("supervisor: backend pid %d exited before becoming healthy: %v; output tail: %s", e.pid, e.err, e.tail)
	}
	return fmt.Sprintf("supervisor: backend pid %d exited before becoming healthy: %v", e.pid, e.err)
}

// IsEarlyExit reports whether err means the backend exited during startup.
func IsEarlyExit(err error) bool {
	_, ok := err.(earlyExitError)
	return ok
}

type healthTimeoutError struct {
	url      string
	deadline string
}

func (e healthTimeoutError) Error() string {
	return fmt.Sprintf("supervisor: backend at %s not healthy within %s", e.url, e.deadline)
}

// IsHealthTimeout reports whether err means the backend never answered its
// health check before the startup deadline.
func IsHealthTimeout(err error) bool {
	_, ok := err.(healthTimeoutError)
	return ok
}

type notRunningError struct{}

func (notRunningError) Error() string {
	return "supervisor: backend is not running"
}

// IsNotRunning reports whether err means no healthy backend is available.
func IsNotRunning(err error) bool {
	_, ok := err.(notRunningError)
	return ok
}
