package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// buildFakeBackend compiles the fake backend binary used by subprocess tests.
func buildFakeBackend(t *testing.T) string {
	t.Helper()
	tdir := t.TempDir()
	bin := filepath.Join(tdir, "fake_backend")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_backend.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake backend: %v: %s", err, string(out))
	}
	return bin
}

func newTestSupervisor(t *testing.T, bin string, opts Options) *Supervisor {
	t.Helper()
	opts.Bin = bin
	s := New(opts, nil, zerolog.Nop())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestStartBecomesHealthy(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{DataDir: t.TempDir()})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	info := s.Info()
	if info.State != string(StateHealthy) {
		t.Fatalf("state = %s, want healthy", info.State)
	}
	if info.Port <= 0 || info.PID <= 0 {
		t.Fatalf("expected port and pid, got %+v", info)
	}
	if _, err := s.Client(); err != nil {
		t.Fatalf("Client: %v", err)
	}
}

func TestStartWithHealthDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	t.Setenv("FAKE_BACKEND_DELAY_MS", "700")
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.Info().State; got != string(StateHealthy) {
		t.Fatalf("state = %s, want healthy", got)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); !IsAlreadyRunning(err) {
		t.Fatalf("expected already-running error, got %v", err)
	}
}

func TestEarlyExitReported(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	t.Setenv("FAKE_BACKEND_EXIT", "3")
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{})

	err := s.Start(context.Background())
	if !IsEarlyExit(err) {
		t.Fatalf("expected early-exit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exiting on request") {
		t.Fatalf("error should carry the stderr tail, got: %v", err)
	}
	if got := s.Info().State; got != string(StateFailed) {
		t.Fatalf("state = %s, want failed", got)
	}
}

func TestHealthTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	// Never becomes healthy within the shortened deadline.
	t.Setenv("FAKE_BACKEND_DELAY_MS", "60000")
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{
		HealthDeadline: 1 * time.Second,
		HealthInterval: 100 * time.Millisecond,
	})

	err := s.Start(context.Background())
	if !IsHealthTimeout(err) {
		t.Fatalf("expected health-timeout error, got %v", err)
	}
}

func TestSpawnFailureMissingBinary(t *testing.T) {
	s := newTestSupervisor(t, filepath.Join(t.TempDir(), "does-not-exist"), Options{})
	err := s.Start(context.Background())
	if !IsSpawn(err) {
		t.Fatalf("expected spawn error, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop #%d: %v", i+1, err)
		}
	}
	if got := s.Info().State; got != string(StateStopped) {
		t.Fatalf("state = %s, want stopped", got)
	}
	if _, err := s.Client(); !IsNotRunning(err) {
		t.Fatalf("expected not-running error, got %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(Options{Bin: "irrelevant"}, nil, zerolog.Nop())
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := s.Info().State; got != string(StateStopped) {
		t.Fatalf("state = %s, want stopped", got)
	}
}

func TestUpdateCredentialPushesToBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	keyFile := filepath.Join(t.TempDir(), "keys.txt")
	t.Setenv("FAKE_BACKEND_KEY_FILE", keyFile)
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.UpdateCredential(ctx, "sk-test-abc"); err != nil {
		t.Fatalf("UpdateCredential: %v", err)
	}
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		t.Fatalf("read key file: %v", err)
	}
	if !strings.Contains(string(raw), "sk-test-abc") {
		t.Fatalf("backend never saw the key, file: %q", raw)
	}
}

func TestUpdateCredentialReturnsWhileBackendHangs(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	t.Setenv("FAKE_BACKEND_HANG_KEY", "1")
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.UpdateCredential(context.Background(), "sk-test-wedge") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("UpdateCredential: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("UpdateCredential did not return while the key endpoint hangs")
	}
}

func TestStartFromFailedRequiresStop(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	t.Setenv("FAKE_BACKEND_EXIT", "3")
	bin := buildFakeBackend(t)
	s := newTestSupervisor(t, bin, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Start(ctx); !IsEarlyExit(err) {
		t.Fatalf("expected early-exit error, got %v", err)
	}
	if err := s.Start(ctx); !IsAlreadyRunning(err) {
		t.Fatalf("Start from failed state: expected rejection, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	os.Unsetenv("FAKE_BACKEND_EXIT")
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
	if got := s.Info().State; got != string(StateHealthy) {
		t.Fatalf("state = %s, want healthy", got)
	}
}

func TestOverlayPath(t *testing.T) {
	got := overlayPath("/usr/bin:/bin")
	for _, d := range pathOverlayDirs {
		if !strings.Contains(got, d) {
			t.Fatalf("overlay missing %s: %s", d, got)
		}
	}
	if !strings.HasSuffix(got, "/usr/bin:/bin") {
		t.Fatalf("original PATH must stay last: %s", got)
	}
	// Already-present dirs are not duplicated.
	again := overlayPath(got)
	if strings.Count(again, "/opt/homebrew/bin") != 1 {
		t.Fatalf("duplicated overlay dir: %s", again)
	}
}
