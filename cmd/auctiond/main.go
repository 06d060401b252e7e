// Command auctiond runs the fast auction draft daemon: the deadline monitor
// plus an operational HTTP surface (health, metrics, monitor debug view).
//
// Configuration is environment-based:
//
//	DATABASE_URL       PostgreSQL connection string (required)
//	LISTEN_ADDR        ops HTTP listen address (default: :8080)
//	MONITOR_INTERVAL   deadline scan cadence (default: 1s)
//	LOG_LEVEL          debug, info, warn, error (default: info)
//	APPLY_SCHEMA       apply the engine schema on startup (default: false)
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jkap86/ht-mvp-backend-sub000/log"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v1.2.0"
var version = "v1.0.0-dev"

func main() {
	os.Exit(run())
}

// run is the actual entry point, returning an exit code so main stays a
// one-liner and shutdown paths are testable.
func run() int {
	cfg, err := loadConfig()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		return 1
	}

	log.SetDefault(log.New(log.ParseLevel(cfg.LogLevel)))
	logger := log.Default().Module("auctiond")
	logger.Info("starting", "version", version, "listen", cfg.ListenAddr, "monitor_interval", cfg.MonitorInterval.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		return 1
	}
	defer daemon.Close()

	if err := daemon.Run(ctx); err != nil {
		logger.Error("daemon exited", "err", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}
