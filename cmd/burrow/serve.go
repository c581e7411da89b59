package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/credentials"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/manager"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/resource"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resource manager daemon",
	Long: `Run the manager with the pools described in the manifest,
backed by the built-in loopback driver.

The manifest is watched for changes: editing a pool's configuration
hot-swaps its pool (new acquisitions move over immediately, the old
pool drains in the background). Metrics are served on /metrics and a
liveness summary on /healthz.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "burrow.yaml", "Path to the manifest")
	serveCmd.Flags().String("listen", ":9690", "HTTP listen address for /metrics and /healthz")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Grace period for drain on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	listenAddr, _ := cmd.Flags().GetString("listen")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.Logging.Level), JSONOutput: cfg.Logging.JSON})
	logger := log.WithComponent("serve")

	var opts []manager.Option
	if cfg.Strategy != "" {
		opts = append(opts, manager.WithStrategy(cfg.Strategy))
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, manager.WithStore(store))
	}
	if cfg.Credentials != nil {
		passphrase := os.Getenv(cfg.Credentials.PassphraseEnv)
		if passphrase == "" {
			return fmt.Errorf("credential passphrase not set: export %s", cfg.Credentials.PassphraseEnv)
		}
		vault, err := credentials.NewVault(cfg.Credentials.Path, passphrase)
		if err != nil {
			return err
		}
		opts = append(opts, manager.WithCredentials(vault))
	}

	mgr := manager.New(opts...)
	for name, spec := range cfg.Pools {
		reg := manager.Registration{
			Resource:        newLoopback(name, spec.DependsOn),
			Pool:            spec.Pool,
			Health:          resource.HealthCheckConfig{Interval: spec.Health.Interval, Timeout: spec.Health.Timeout},
			HealthThreshold: spec.Health.Threshold,
			Quarantine:      spec.Quarantine,
			Autoscale:       spec.Autoscale,
		}
		if err := mgr.Register(reg); err != nil {
			return fmt.Errorf("register pool %s: %w", name, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mgr.Initialize(ctx); err != nil {
		return err
	}

	watcher, err := config.Watch(configPath, func(updated *config.Config) {
		for name, spec := range updated.Pools {
			if err := mgr.ReloadPool(name, spec.Pool); err != nil {
				logger.Warn().Str("pool", name).Err(err).Msg("pool reload skipped")
			}
		}
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		statuses := make(map[string]*manager.ResourceStatus)
		for _, key := range mgr.Keys() {
			if status, err := mgr.Status(key); err == nil {
				statuses[key] = status
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statuses)
	})

	server := &http.Server{Addr: listenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server failed")
		}
	}()

	logger.Info().
		Str("config", configPath).
		Str("listen", listenAddr).
		Int("pools", len(cfg.Pools)).
		Msg("burrow serving")

	<-ctx.Done()
	logger.Info().Msg("signal received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = server.Shutdown(shutdownCtx)
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown completed with forced reclamation")
	}
	return nil
}
