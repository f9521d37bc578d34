package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"animatic/pkg/types"
)

type fakePM struct {
	info       types.BackendInfo
	updatedKey string
	updateErr  error
}

func (f *fakePM) Info() types.BackendInfo { return f.info }

func (f *fakePM) UpdateCredential(_ context.Context, key string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedKey = key
	return nil
}

type fakeCreds struct {
	key     string
	loadErr error
	cleared bool
}

func (f *fakeCreds) Load() (string, error) { return f.key, f.loadErr }
func (f *fakeCreds) Clear() error          { f.cleared = true; return nil }

func newTestBridge(t *testing.T, pm *fakePM, creds *fakeCreds) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewMux(pm, creds, "http://localhost:3000", zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetCredential(t *testing.T) {
	srv := newTestBridge(t, &fakePM{}, &fakeCreds{key: "sk-stored"})
	resp, err := http.Get(srv.URL + "/credential")
	if err != nil {
		t.Fatalf("GET /credential: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body types.CredentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Key != "sk-stored" {
		t.Fatalf("key = %q", body.Key)
	}
}

func TestPutCredential(t *testing.T) {
	pm := &fakePM{}
	srv := newTestBridge(t, pm, &fakeCreds{})

	payload, _ := json.Marshal(types.KeyUpdateRequest{Key: "sk-new"})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/credential", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /credential: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if pm.updatedKey != "sk-new" {
		t.Fatalf("supervisor saw key %q", pm.updatedKey)
	}
}

func TestPutCredentialRejectsEmpty(t *testing.T) {
	srv := newTestBridge(t, &fakePM{}, &fakeCreds{})
	for _, body := range []string{`{"key":"  "}`, `not json`} {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/credential", bytes.NewReader([]byte(body)))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT /credential: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestDeleteCredential(t *testing.T) {
	creds := &fakeCreds{key: "sk-old"}
	srv := newTestBridge(t, &fakePM{}, creds)
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/credential", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /credential: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !creds.cleared {
		t.Fatal("store was not cleared")
	}
}

func TestGetBackendInfo(t *testing.T) {
	pm := &fakePM{info: types.BackendInfo{State: "healthy", Port: 52114, PID: 4242}}
	srv := newTestBridge(t, pm, &fakeCreds{})
	resp, err := http.Get(srv.URL + "/backend")
	if err != nil {
		t.Fatalf("GET /backend: %v", err)
	}
	defer resp.Body.Close()
	var body types.BackendInfo
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body != pm.info {
		t.Fatalf("info = %+v, want %+v", body, pm.info)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestBridge(t, &fakePM{}, &fakeCreds{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	srv := newTestBridge(t, &fakePM{}, &fakeCreds{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/credential", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodOptions, srv.URL+"/credential", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin for foreign origin: %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestBridge(t, &fakePM{}, &fakeCreds{})
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
