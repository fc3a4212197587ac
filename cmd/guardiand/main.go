// Command guardiand is the workspace daemon. It watches the workspace
// for changes, creates checkpoints, and serves the editor RPC socket.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"guardian/internal/checkpoint"
	"guardian/internal/classify"
	"guardian/internal/config"
	"guardian/internal/database"
	"guardian/internal/eventhub"
	"guardian/internal/git"
	"guardian/internal/graph"
	"guardian/internal/rollback"
	"guardian/internal/scheduler"
	"guardian/internal/server"
	"guardian/internal/storage"
	"guardian/internal/watcher"
)

const (
	watchDebounce  = 500 * time.Millisecond
	coalesceWindow = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "guardiand: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	workspace := "."
	if len(os.Args) > 1 {
		workspace = os.Args[1]
	}
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logClose, err := newLogger(cfg.LogDir)
	if err != nil {
		return err
	}
	defer logClose()
	slog.SetDefault(logger)

	settings, err := cfg.LoadSettings()
	if err != nil {
		logger.Warn("settings unreadable, using defaults", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gitClient git.Client
	if settings.UseGit && git.IsRepository(workspace) {
		repo, err := git.Open(workspace)
		if err != nil {
			logger.Warn("git unavailable, running snapshot-only", "error", err)
		} else {
			gitClient = repo
		}
	}

	hub := eventhub.New(ctx)

	store, err := checkpoint.NewStore(workspace, storage.New(cfg.StatePath, cfg.PoolDir), gitClient, hub, logger)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	if err := store.UpdateSettings(settings); err != nil {
		logger.Warn("failed to persist settings into state", "error", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Warn("audit database unavailable", "error", err)
		db = nil
	} else {
		defer db.Close()
	}

	buffers := server.NewBufferRegistry()
	engine := rollback.NewEngine(store, gitClient, workspace, buffers, hub, logger)
	assembler := graph.NewAssembler(gitClient, logger)

	var sched *scheduler.Scheduler
	if settings.AutoSaveEnabled {
		sched = scheduler.New(time.Duration(settings.AutoSaveIntervalMinutes)*time.Minute, func() {
			autoSave(store, gitClient, logger)
		}, logger)
		sched.Start(ctx)
		defer sched.Stop()
	}

	var rec watcher.Recorder
	if db != nil {
		rec = db
	}
	coalescer := watcher.NewCoalescer(workspace, store, classify.New(), rec, buffers.ActiveTools, coalesceWindow, logger)
	coalescer.Start()
	defer coalescer.Stop()

	w, err := watcher.New(workspace, watchDebounce, coalescer.Add, logger)
	if err != nil {
		logger.Warn("file watcher unavailable", "error", err)
	} else {
		if err := w.Start(); err != nil {
			logger.Warn("file watcher failed to start", "error", err)
		}
		defer w.Close()
	}

	var schedForRPC server.Rescheduler
	if sched != nil {
		schedForRPC = sched
	}
	service := server.NewService(store, assembler, engine, buffers, db, schedForRPC)
	srv := server.NewServer(service, logger)
	buffers.SetBroadcaster(srv)
	hub.SetBroadcaster(srv)

	port, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	logger.Info("guardiand started", "workspace", workspace, "port", port)

	// Reconcile state with whatever happened while we were not running.
	if result, err := store.SyncWithGit(); err != nil {
		logger.Warn("startup sync failed", "error", err)
	} else if db != nil {
		if err := db.RecordSyncRun(result.Added, result.Removed); err != nil {
			logger.Warn("failed to record sync run", "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	return srv.Stop(ctx)
}

// autoSave creates a periodic checkpoint, skipped when git reports a
// clean tree so idle workspaces do not accumulate empty checkpoints.
func autoSave(store *checkpoint.Store, gc git.Client, logger *slog.Logger) {
	if gc != nil {
		status, err := gc.Status()
		if err == nil && status.IsClean {
			return
		}
	}
	if _, err := store.CreateCheckpoint(checkpoint.TypeAutoSave, checkpoint.SourceAutoSave, nil, nil); err != nil {
		logger.Warn("auto-save checkpoint failed", "error", err)
	}
}

// newLogger writes structured logs to both stderr and the workspace
// log file.
func newLogger(logDir string) (*slog.Logger, func(), error) {
	f, err := os.OpenFile(filepath.Join(logDir, "guardiand.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, f), &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler), func() { f.Close() }, nil
}
