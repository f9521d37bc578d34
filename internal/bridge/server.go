// Package bridge is the loopback control API the desktop UI talks to: it
// exposes the stored credential and the supervised backend's state without
// the UI ever touching the keychain or the process table itself.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"animatic/pkg/types"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes int64 = 1 << 20

// ProcessManager is the slice of the supervisor the bridge needs.
type ProcessManager interface {
	Info() types.BackendInfo
	UpdateCredential(ctx context.Context, key string) error
}

// CredentialStore is the slice of the credential store the bridge needs.
type CredentialStore interface {
	Load() (string, error)
	Clear() error
}

// NewMux builds the bridge router. uiOrigin is the only origin allowed to
// call it cross-origin.
func NewMux(pm ProcessManager, creds CredentialStore, uiOrigin string, log zerolog.Logger) http.Handler {
	log = log.With().Str("component", "bridge").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{uiOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/credential", func(w http.ResponseWriter, r *http.Request) {
		key, err := creds.Load()
		if err != nil {
			log.Error().Err(err).Msg("credential load failed")
			writeJSONError(w, http.StatusInternalServerError, "could not read credential")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.CredentialResponse{Key: key})
	})

	r.Put("/credential", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.KeyUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Key) == "" {
			writeJSONError(w, http.StatusBadRequest, "key is required")
			return
		}
		if err := pm.UpdateCredential(r.Context(), req.Key); err != nil {
			log.Error().Err(err).Msg("credential update failed")
			writeJSONError(w, http.StatusInternalServerError, "could not store credential")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.OKResponse{OK: true})
	})

	r.Delete("/credential", func(w http.ResponseWriter, r *http.Request) {
		if err := creds.Clear(); err != nil {
			log.Error().Err(err).Msg("credential clear failed")
			writeJSONError(w, http.StatusInternalServerError, "could not clear credential")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.OKResponse{OK: true})
	})

	r.Get("/backend", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pm.Info())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// Server wraps an http.Server bound to the loopback bridge address.
type Server struct {
	httpSrv *http.Server
	log     zerolog.Logger
}

// NewServer builds a server for the given handler.
func NewServer(addr string, handler http.Handler, log zerolog.Logger) *Server {
	return &Server{
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "bridge").Logger(),
	}
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("bridge listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
