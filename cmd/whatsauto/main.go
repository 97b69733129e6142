package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsauto/internal/archive"
	"whatsauto/internal/config"
	"whatsauto/internal/constants"
	"whatsauto/internal/creds"
	"whatsauto/internal/events"
	"whatsauto/internal/models"
	"whatsauto/internal/session"
	"whatsauto/internal/tracing"
	"whatsauto/pkg/transport"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("whatsauto %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting whatsauto")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	wire, err := transport.Open(cfg.Transport.Driver)
	if err != nil {
		return err
	}

	store, err := creds.NewFileStore(cfg.Creds.Dir, cfg.Creds.Encrypt)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	var messageArchive *archive.Archive
	if cfg.Archive.Enabled {
		messageArchive, err = archive.New(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize archive: %w", err)
		}
		defer func() {
			if err := messageArchive.Close(); err != nil {
				logger.Warnf("Failed to close archive: %v", err)
			}
		}()
		go archiveCleanupLoop(ctx, messageArchive, cfg.Archive.RetentionDays, logger)
	}

	registry := session.NewRegistry()

	for _, entry := range bootEntries(cfg, store, logger) {
		if err := startSession(ctx, entry, cfg, wire, store, registry, messageArchive, logger); err != nil {
			logger.WithField("session", entry.ID).Warnf("Failed to start session: %v", err)
		}
	}

	server := NewServer(cfg, registry, wire, store, messageArchive, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Failed to shutdown server gracefully: %v", err)
	}
	if err := registry.DestroyAll(shutdownCtx, false); err != nil {
		logger.Warnf("Failed to destroy sessions: %v", err)
	}

	logger.Info("Shutdown completed")
	return nil
}

// bootEntries merges the configured sessions with any sessions found in
// the credential store, so previously paired sessions resume after a
// restart without being re-declared.
func bootEntries(cfg *models.Config, store creds.Store, logger *logrus.Logger) []models.SessionEntry {
	entries := make([]models.SessionEntry, 0, len(cfg.Sessions))
	seen := make(map[string]bool)
	for _, entry := range cfg.Sessions {
		entries = append(entries, entry)
		seen[entry.ID] = true
	}

	persisted, err := store.List()
	if err != nil {
		logger.Warnf("Failed to list persisted sessions: %v", err)
		return entries
	}
	for _, id := range persisted {
		if seen[id] {
			continue
		}
		logger.WithField("session", id).Info("Resuming persisted session")
		entries = append(entries, models.SessionEntry{ID: id, Config: models.DefaultSessionConfig()})
	}
	return entries
}

func startSession(ctx context.Context, entry models.SessionEntry, cfg *models.Config, wire transport.Transport, store creds.Store, registry *session.Registry, messageArchive *archive.Archive, logger *logrus.Logger) error {
	bus := events.NewBus()
	if messageArchive != nil {
		if err := messageArchive.Attach(bus, logger.WithField("session", entry.ID)); err != nil {
			return err
		}
	}

	ctrl, err := session.New(entry.ID, session.Options{
		Config:    entry.Config,
		Transport: wire,
		Creds:     store,
		Bus:       bus,
		Logger:    logger,
		Registry:  registry,
		Retry:     cfg.Retry,
	})
	if err != nil {
		return err
	}
	return ctrl.Initialize(ctx)
}

func archiveCleanupLoop(ctx context.Context, messageArchive *archive.Archive, retentionDays int, logger *logrus.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := messageArchive.CleanupOlderThan(ctx, retentionDays)
			if err != nil {
				logger.Warnf("Archive cleanup failed: %v", err)
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("Archive cleanup completed")
			}
		}
	}
}
