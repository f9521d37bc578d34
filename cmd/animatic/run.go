package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"animatic/internal/bridge"
	"animatic/internal/credstore"
	"animatic/internal/logging"
	"animatic/internal/supervisor"
)

func newRunCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the backend and the UI bridge, block until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Optional .env for local development; missing file is fine.
			_ = godotenv.Load()

			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logging.New(cfg.LogLevel)

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			lock := flock.New(filepath.Join(cfg.DataDir, "animatic.lock"))
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another animatic instance is already running (lock: %s)", lock.Path())
			}
			defer func() { _ = lock.Unlock() }()

			if cfg.BackendBin == "" {
				return fmt.Errorf("backend binary is not configured (backend_bin)")
			}
			if !supervisor.BinInPath(cfg.BackendBin) {
				log.Warn().Str("bin", cfg.BackendBin).Msg("backend binary not found yet, spawn may fail")
			}

			creds := credstore.New(cfg.DataDir, log)

			sup := supervisor.New(supervisor.Options{
				Bin:        cfg.BackendBin,
				DataDir:    cfg.DataDir,
				StaticDir:  cfg.StaticDir,
				SamplesDir: cfg.SamplesDir,
			}, creds, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sup.Start(ctx); err != nil {
				switch {
				case supervisor.IsSpawn(err):
					return fmt.Errorf("backend failed to spawn: %w", err)
				case supervisor.IsEarlyExit(err):
					return fmt.Errorf("backend crashed during startup: %w", err)
				case supervisor.IsHealthTimeout(err):
					return fmt.Errorf("backend never became healthy: %w", err)
				default:
					return err
				}
			}

			srv := bridge.NewServer(cfg.BridgeAddr, bridge.NewMux(sup, creds, cfg.UIOrigin, log), log)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case <-ctx.Done():
				log.Info().Msg("shutdown requested")
			case err := <-errCh:
				if err != nil {
					_ = sup.Stop()
					return fmt.Errorf("bridge server: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("bridge shutdown error")
			}
			if err := sup.Stop(); err != nil {
				log.Warn().Err(err).Msg("backend stop error")
			}
			return nil
		},
	}
}
