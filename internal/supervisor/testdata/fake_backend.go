package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// Fake backend for supervisor tests. Accepts the real backend's flags and a
// few knobs through the environment:
//
//	FAKE_BACKEND_DELAY_MS  delay before /api/status starts answering 200
//	FAKE_BACKEND_EXIT      exit immediately with this code, never serve
//	FAKE_BACKEND_KEY_FILE  append keys received on /api/config/key here
//	FAKE_BACKEND_HANG_KEY  /api/config/key accepts the request, never answers
func main() {
	var port int
	var staticDir string
	var dataDir string
	flag.IntVar(&port, "port", 0, "listen port")
	flag.StringVar(&staticDir, "static-dir", "", "static assets dir")
	flag.StringVar(&dataDir, "data-dir", "", "data dir")
	flag.Parse()

	if code := os.Getenv("FAKE_BACKEND_EXIT"); code != "" {
		n, _ := strconv.Atoi(code)
		fmt.Fprintln(os.Stderr, "fake backend exiting on request")
		os.Exit(n)
	}

	readyAt := time.Now()
	if ms := os.Getenv("FAKE_BACKEND_DELAY_MS"); ms != "" {
		n, _ := strconv.Atoi(ms)
		readyAt = readyAt.Add(time.Duration(n) * time.Millisecond)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if time.Now().Before(readyAt) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"latex_available": false,
			"template_count":  0,
		})
	})
	mux.HandleFunc("/api/config/key", func(w http.ResponseWriter, r *http.Request) {
		if os.Getenv("FAKE_BACKEND_HANG_KEY") == "1" {
			<-r.Context().Done()
			return
		}
		var req struct {
			Key string `json:"key"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if path := os.Getenv("FAKE_BACKEND_KEY_FILE"); path != "" {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err == nil {
				fmt.Fprintln(f, req.Key)
				_ = f.Close()
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	fmt.Printf("fake backend listening on %d static=%s data=%s\n", port, staticDir, dataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
