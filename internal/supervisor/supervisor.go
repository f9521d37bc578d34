// Package supervisor owns the lifecycle of the single backend render process:
// port allocation, spawn, health polling, credential push and shutdown.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"animatic/internal/backend"
	"animatic/internal/credstore"
	"animatic/internal/netutil"
	"animatic/pkg/types"
)

// State is the supervisor's view of the backend process.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateHealthy  State = "healthy"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

const (
	defaultHealthDeadline = 30 * time.Second
	defaultHealthInterval = 300 * time.Millisecond
	defaultHealthAttempt  = 1 * time.Second
	defaultStopGrace      = 3 * time.Second
	// credentialPushTimeout bounds the best-effort key push to a live
	// backend; the persisted credential is authoritative either way.
	credentialPushTimeout = 3 * time.Second
)

// pathOverlayDirs are prepended to PATH so the backend finds ffmpeg and LaTeX
// installs that GUI-launched processes do not inherit.
var pathOverlayDirs = []string{
	"/opt/homebrew/bin",
	"/opt/homebrew/sbin",
	"/usr/local/bin",
	"/Library/TeX/texbin",
}

// Options configures a Supervisor.
type Options struct {
	// Bin is the backend executable path.
	Bin string
	// DataDir is passed as --data-dir and used as the working directory.
	DataDir string
	// StaticDir is passed as --static-dir.
	StaticDir string
	// SamplesDir is exported to the backend as ANIMATIC_SAMPLES_DIR.
	SamplesDir string

	HealthDeadline time.Duration
	HealthInterval time.Duration
	StopGrace      time.Duration
}

func (o *Options) normalize() {
	if o.HealthDeadline <= 0 {
		o.HealthDeadline = defaultHealthDeadline
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = defaultHealthInterval
	}
	if o.StopGrace <= 0 {
		o.StopGrace = defaultStopGrace
	}
}

// Supervisor manages at most one backend process.
type Supervisor struct {
	opts       Options
	creds      *credstore.Store
	log        zerolog.Logger
	httpClient *http.Client

	mu       sync.Mutex
	state    State
	port     int
	cmd      *exec.Cmd
	client   *backend.Client
	stopping bool

	// done is closed by the watcher goroutine once cmd.Wait returns;
	// exitErr holds its result.
	done    chan struct{}
	exitErr error
}

// New builds a supervisor in the Idle state.
func New(opts Options, creds *credstore.Store, log zerolog.Logger) *Supervisor {
	opts.normalize()
	return &Supervisor{
		opts:  opts,
		creds: creds,
		log:   log.With().Str("component", "supervisor").Logger(),
		// Per-call deadlines come from contexts.
		httpClient: &http.Client{Timeout: 0},
		state:      StateIdle,
	}
}

// Start spawns the backend and blocks until it is healthy, it exits, the
// health deadline passes, or ctx is cancelled. Only one backend may run.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	// Only Idle and Stopped accept a Start; a Failed backend needs an
	// explicit Stop before a retry.
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return alreadyRunningError{}
	}
	s.state = StateStarting
	s.stopping = false
	s.exitErr = nil
	s.mu.Unlock()

	apiKey := ""
	if s.creds != nil {
		k, err := s.creds.Load()
		if err != nil {
			s.log.Warn().Err(err).Msg("could not load stored credential, backend starts without one")
		} else {
			apiKey = k
		}
	}

	port, err := netutil.AllocatePort()
	if err != nil {
		s.fail()
		backendStartsTotal.WithLabelValues("port_error").Inc()
		return fmt.Errorf("supervisor: allocate port: %w", err)
	}
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	args := []string{"--port", fmt.Sprint(port)}
	if s.opts.StaticDir != "" {
		args = append(args, "--static-dir", s.opts.StaticDir)
	}
	if s.opts.DataDir != "" {
		args = append(args, "--data-dir", s.opts.DataDir)
	}

	cmd := exec.Command(s.opts.Bin, args...)
	cmd.Env = s.buildEnv(apiKey)
	if s.opts.DataDir != "" {
		cmd.Dir = s.opts.DataDir
	}
	stdout := newLineWriter(s.log, "stdout")
	stderr := newLineWriter(s.log, "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		s.fail()
		backendStartsTotal.WithLabelValues("spawn_error").Inc()
		return spawnError{bin: s.opts.Bin, err: err}
	}
	pid := cmd.Process.Pid
	s.log.Info().Int("pid", pid).Int("port", port).Msg("backend spawned")

	done := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.port = port
	s.done = done
	s.mu.Unlock()

	go func() {
		werr := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		s.mu.Lock()
		s.exitErr = werr
		wasHealthy := s.state == StateHealthy
		requested := s.stopping
		if wasHealthy && !requested {
			s.state = StateFailed
		}
		s.mu.Unlock()
		close(done)
		if wasHealthy && !requested {
			backendUp.Set(0)
			backendUnexpectedExits.Inc()
			s.log.Error().Err(werr).Int("pid", pid).Msg("backend exited unexpectedly")
		}
	}()

	deadline := time.Now().Add(s.opts.HealthDeadline)
	for {
		select {
		case <-ctx.Done():
			s.terminate(cmd, done)
			s.fail()
			backendStartsTotal.WithLabelValues("cancelled").Inc()
			return ctx.Err()
		case <-done:
			s.fail()
			backendStartsTotal.WithLabelValues("early_exit").Inc()
			return earlyExitError{pid: pid, err: s.exitError(), tail: stderr.Tail()}
		default:
		}
		if time.Now().After(deadline) {
			s.terminate(cmd, done)
			s.fail()
			backendStartsTotal.WithLabelValues("health_timeout").Inc()
			return healthTimeoutError{url: baseURL, deadline: s.opts.HealthDeadline.String()}
		}
		if s.isHealthy(baseURL) {
			break
		}
		time.Sleep(s.opts.HealthInterval)
	}

	s.mu.Lock()
	s.state = StateHealthy
	s.client = backend.New(baseURL)
	s.mu.Unlock()
	backendUp.Set(1)
	backendStartsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Int("pid", pid).Str("url", baseURL).Msg("backend healthy")
	return nil
}

func (s *Supervisor) isHealthy(baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), defaultHealthAttempt)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status", nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Stop terminates the backend, SIGTERM first and Kill after the grace period.
// Calling Stop with nothing running is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	if cmd == nil || cmd.Process == nil || s.state == StateStopped {
		s.state = StateStopped
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	s.terminate(cmd, done)

	s.mu.Lock()
	s.state = StateStopped
	s.client = nil
	s.cmd = nil
	s.mu.Unlock()
	backendUp.Set(0)
	s.log.Info().Msg("backend stopped")
	return nil
}

func (s *Supervisor) terminate(cmd *exec.Cmd, done chan struct{}) {
	select {
	case <-done:
		return
	default:
	}
	_ = gracefulTerminate(cmd.Process)
	select {
	case <-done:
	case <-time.After(s.opts.StopGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}

// UpdateCredential persists the key and pushes it to the running backend.
// Persisting is authoritative; the push is best effort since the backend also
// receives the key through its environment on the next start.
func (s *Supervisor) UpdateCredential(ctx context.Context, key string) error {
	if s.creds != nil {
		if err := s.creds.Save(key); err != nil {
			return err
		}
	}
	client, err := s.Client()
	if err != nil {
		return nil
	}
	// A wedged backend must not stall the caller: the push gets its own
	// short deadline regardless of ctx.
	pushCtx, cancel := context.WithTimeout(ctx, credentialPushTimeout)
	defer cancel()
	if err := client.UpdateKey(pushCtx, key); err != nil {
		s.log.Warn().Err(err).Msg("could not push credential to running backend")
	}
	return nil
}

// Client returns the backend client while the backend is healthy.
func (s *Supervisor) Client() (*backend.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateHealthy || s.client == nil {
		return nil, notRunningError{}
	}
	return s.client, nil
}

// Info reports the backend's state for the bridge API.
func (s *Supervisor) Info() types.BackendInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := types.BackendInfo{State: string(s.state)}
	if s.state == StateHealthy || s.state == StateStarting {
		info.Port = s.port
		if s.cmd != nil && s.cmd.Process != nil {
			info.PID = s.cmd.Process.Pid
		}
	}
	return info
}

func (s *Supervisor) fail() {
	s.mu.Lock()
	s.state = StateFailed
	s.client = nil
	s.mu.Unlock()
}

func (s *Supervisor) exitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// buildEnv is the parent environment with the PATH overlay, the credential
// and the samples dir applied.
func (s *Supervisor) buildEnv(apiKey string) []string {
	env := os.Environ()
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		// GUI-launched processes on macOS get a bare PATH.
		if runtime.GOOS == "darwin" && strings.HasPrefix(kv, "PATH=") {
			out = append(out, "PATH="+overlayPath(strings.TrimPrefix(kv, "PATH=")))
			continue
		}
		out = append(out, kv)
	}
	if apiKey != "" {
		out = append(out, "ANTHROPIC_API_KEY="+apiKey)
	}
	if s.opts.SamplesDir != "" {
		out = append(out, "ANIMATIC_SAMPLES_DIR="+s.opts.SamplesDir)
	}
	return out
}

func overlayPath(path string) string {
	existing := strings.Split(path, string(os.PathListSeparator))
	seen := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		seen[d] = struct{}{}
	}
	var extra []string
	for _, d := range pathOverlayDirs {
		if _, ok := seen[d]; !ok {
			extra = append(extra, d)
		}
	}
	if len(extra) == 0 {
		return path
	}
	return strings.Join(extra, string(os.PathListSeparator)) + string(os.PathListSeparator) + path
}

// BinInPath reports whether the backend binary would resolve with the overlay
// applied. Used for startup diagnostics only.
func BinInPath(bin string) bool {
	if filepath.IsAbs(bin) {
		_, err := os.Stat(bin)
		return err == nil
	}
	_, err := exec.LookPath(bin)
	return err == nil
}
