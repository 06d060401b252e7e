package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
	"github.com/jkap86/ht-mvp-backend-sub000/log"
	"github.com/jkap86/ht-mvp-backend-sub000/postgres"
)

// daemon wires the pool, service, monitor and ops HTTP server together.
type daemon struct {
	cfg     config
	logger  *log.Logger
	pool    *pgxpool.Pool
	service *auction.Service
	monitor *auction.Monitor
	server  *http.Server
}

// newDaemon connects to the database and builds the engine components. The
// ops server is constructed but not yet listening.
func newDaemon(ctx context.Context, cfg config, logger *log.Logger) (*daemon, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.ApplySchema {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("schema applied")
	}

	runner := postgres.NewRunner(pool)
	service := auction.NewService(runner,
		auction.WithFinalizer(postgres.NewFinalizer()),
		auction.WithLogger(logger.Module("auction")),
	)
	monitor := auction.NewMonitor(service, runner,
		auction.WithInterval(cfg.MonitorInterval),
		auction.WithMonitorLogger(logger.Module("monitor")),
	)

	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		service: service,
		monitor: monitor,
	}
	d.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d, nil
}

// routes builds the ops mux: liveness, metrics and the monitor debug view.
func (d *daemon) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", d.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/debug/monitor", d.handleMonitorDebug)
	return r
}

func (d *daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := d.pool.Ping(ctx); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (d *daemon) handleMonitorDebug(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.monitor.Stats())
}

// Run starts the monitor and the ops server and blocks until ctx is canceled,
// then drains both.
func (d *daemon) Run(ctx context.Context) error {
	d.monitor.Start()
	defer d.monitor.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	d.logger.Info("ops server listening", "addr", d.cfg.ListenAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	return nil
}

// Close releases the database pool.
func (d *daemon) Close() {
	d.pool.Close()
}
