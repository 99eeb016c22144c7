package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"tableread/internal/config"
	"tableread/internal/docstore"
	"tableread/internal/httpapi"
	"tableread/internal/logging"
	"tableread/internal/voicelib"
)

const (
	lockFileName = "tableread.lock"
	pidFileName  = "tableread.pid"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options adjusts how Run configures the process. Zero values fall back to
// the loaded configuration.
type Options struct {
	// LogLevel overrides cfg.Logging.Level when non-empty.
	LogLevel string
	// Development switches the console handler into its verbose layout.
	Development bool
}

// Run starts the tableread server and blocks until the context is canceled,
// an interrupt arrives, or the listener fails. Each invocation writes its own
// run-scoped log file alongside console output.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, stop := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, "tableread-"+runID+".log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "tableread-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logging.LogFileName},
	)

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another tableread server is already running")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release instance lock", logging.Args(logging.Error(err))...)
		}
	}()

	pidPath := filepath.Join(cfg.Paths.LogDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := docstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	library := voicelib.New(cfg.Paths.LibraryDir, logger)

	api := httpapi.NewServer(cfg, store, library, logger)
	defer api.Close()

	listener, err := net.Listen("tcp", cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Paths.APIBind, err)
	}

	httpServer := &http.Server{
		Handler:           api.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	logger.Info("tableread server started",
		logging.Args(
			logging.String("run_id", runID),
			logging.String("bind", listener.Addr().String()),
			logging.String("database", store.Path()),
			logging.String("voice_library", library.Root()),
			logging.String(logging.FieldEventType, "server_started"),
		)...)

	select {
	case err := <-serveErr:
		logging.ErrorWithContext(logger, "server stopped unexpectedly", "server_failed",
			logging.Error(err))
		return fmt.Errorf("serve: %w", err)
	case <-signalCtx.Done():
	}

	logger.Info("tableread server shutting down",
		logging.Args(logging.String(logging.FieldEventType, "server_stopping"))...)

	// Disconnect event subscribers first; idle websockets would otherwise
	// hold Shutdown open until the timeout.
	api.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(logger, "graceful shutdown incomplete", "server_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "open connections were closed forcefully"))
		_ = httpServer.Close()
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("listener exited with error", logging.Args(logging.Error(err))...)
	}

	logger.Info("tableread server stopped",
		logging.Args(logging.String(logging.FieldEventType, "server_stopped"))...)
	return nil
}

// writePIDFile records the current process ID so operators and the CLI can
// find a running server.
func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
