package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"log/slog"

	"github.com/genoweb/genoserve/internal/backup"
	"github.com/genoweb/genoserve/internal/config"
	"github.com/genoweb/genoserve/internal/handlers"
	"github.com/genoweb/genoserve/internal/httpd"
	"github.com/genoweb/genoserve/internal/logging"
	"github.com/genoweb/genoserve/internal/metrics"
	"github.com/genoweb/genoserve/internal/session"
	"github.com/genoweb/genoserve/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging, to files when LOG_DIR is set
	logService, err := logging.New(cfg.LogDir)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logService.Close()
	log := slog.Default()

	log.Info("starting genoserve",
		"https_port", cfg.HTTPSPort,
		"http_port", cfg.HTTPPort,
		"server_root", cfg.ServerRoot,
		"session_duration", cfg.SessionDuration.String(),
		"url_lifetime", cfg.URLLifetime.String(),
		"db_driver", cfg.DBDriver,
	)

	// Initialize database
	dsn := cfg.DBPath
	if cfg.DBDriver == store.DriverPostgres {
		dsn = cfg.DBDSN
	}
	db, err := store.Open(cfg.DBDriver, dsn)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database initialized", "driver", cfg.DBDriver)

	if err := db.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		slog.Error("failed to initialize admin credentials", "error", err)
		os.Exit(1)
	}

	// Managers for live sessions and temporary URLs
	sessions := session.NewManager(cfg.SessionDuration)
	urls := session.NewURLManager(cfg.URLLifetime)

	// Flat-file fallback next to the database
	flatDir := filepath.Join(filepath.Dir(cfg.DBPath), "backup")
	flat, err := backup.NewFlatFile(flatDir)
	if err != nil {
		slog.Error("failed to set up the flat-file backup", "error", err)
		os.Exit(1)
	}

	// Restore state from the previous run; expired entries are dropped by
	// the first sweep
	restoredSessions, restoredURLs := backup.Restore(db, flat, log)
	for _, s := range restoredSessions {
		sessions.Add(s)
	}
	for _, u := range restoredURLs {
		urls.Add(u)
	}
	log.Info("state restored", "sessions", sessions.Count(), "urls", urls.Count())

	m := metrics.New()

	backups := backup.New(db, flat, 2, log)
	backups.OnPrimaryFailure = m.BackupFailure
	defer backups.Close()

	// Endpoint handlers and registry
	svc := handlers.New(cfg, db, sessions, urls, m, log, nil)
	registry := httpd.NewRegistry()
	svc.Register(registry)

	worker := &httpd.Worker{
		Registry: registry,
		Auth:     svc,
		Log:      log,
		OnRequest: func(method httpd.Method, path string, status httpd.Status) {
			m.ObserveRequest(string(method), path, int(status))
		},
	}

	server := &httpd.Server{
		Worker: worker,
		Log:    log,
	}
	if cfg.HTTPSPort != "" {
		server.Addr = cfg.ServerHost + ":" + cfg.HTTPSPort
		server.TLS = httpd.TLSFiles{
			Certificate: cfg.SSLCertificate,
			Key:         cfg.SSLKey,
			Chain:       cfg.SSLCertificateChain,
		}
	}
	if cfg.HTTPPort != "" {
		server.PlainAddr = cfg.ServerHost + ":" + cfg.HTTPPort
	}

	// Periodic maintenance
	server.AddTimer("session-sweep", 5*time.Minute, func() {
		evicted, survivors := sessions.SweepExpired()
		if len(evicted) > 0 {
			log.Info("expired sessions removed", "count", len(evicted))
		}
		m.SetActiveSessions(len(survivors))
		backups.Sessions(survivors)
	})
	server.AddTimer("url-sweep", 5*time.Minute, func() {
		evicted, survivors := urls.SweepExpired()
		if len(evicted) > 0 {
			log.Info("expired URLs removed", "count", len(evicted))
		}
		m.SetActiveURLs(len(survivors))
		backups.URLs(survivors)
	})
	server.AddTimer("location-cache-sweep", 10*time.Minute, func() {
		svc.SweepLocations()
	})
	server.AddTimer("log-rotation", time.Hour, func() {
		if err := logService.Rotate(); err != nil {
			log.Error("log rotation failed", "error", err)
		}
	})

	// Serve until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// Final snapshot so a restart picks up where we left off
	backups.Sessions(sessions.All())
	backups.URLs(urls.All())
	backups.Close()

	log.Info("server shutdown complete")
}
