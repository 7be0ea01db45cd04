// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/19player/internal/api/rest"
	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/app/session"
	"github.com/osa030/19player/internal/infra/config"
	"github.com/osa030/19player/internal/infra/library"
	"github.com/osa030/19player/internal/infra/logger"
	"github.com/osa030/19player/internal/infra/media"
	"github.com/osa030/19player/internal/ui"
)

var (
	app        = kingpin.New("19player", "19player music player")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	serveCmd = app.Command("serve", "Play headless and serve the remote-control API (default)").Default()
	tuiCmd   = app.Command("tui", "Play with the terminal user interface")
	listCmd  = app.Command("list", "List library tracks and playlists and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if command == tuiCmd.FullCommand() {
		// The terminal UI owns the screen
		loggerConfig.Output = "none"
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	switch command {
	case listCmd.FullCommand():
		err = list(cfg, os.Stdout)
	case tuiCmd.FullCommand():
		err = runTUI(cfg)
	case serveCmd.FullCommand():
		err = run(cfg)
	}
	if err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// openSession opens the library and the media output and starts a session.
func openSession(cfg *config.Config) (*session.Manager, *library.Library, error) {
	lib, err := library.Open(cfg.Library)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open library")
	}

	out, err := media.New(cfg.Media)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create media output")
	}

	sessionMgr := session.NewManager(cfg, lib, out)
	sessionMgr.Start()
	return sessionMgr, lib, nil
}

// watchLibrary reloads the library on file changes until ctx is done.
func watchLibrary(ctx context.Context, cfg *config.Config, lib *library.Library) {
	if !cfg.Library.Watch {
		return
	}
	go func() {
		if err := lib.Watch(ctx); err != nil {
			zlog.Error().Msgf("Library watch stopped: %v", err)
		}
	}()
}

// run executes the headless server. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	sessionMgr, lib, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sessionMgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchLibrary(ctx, cfg, lib)

	// Create server with h2c (HTTP/2 cleartext) support
	handler := rest.NewServer(sessionMgr, cfg).Handler()
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal, session end, or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close session manager first to terminate active streams
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// runTUI plays through the terminal UI until the user quits.
func runTUI(cfg *config.Config) error {
	sessionMgr, lib, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sessionMgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchLibrary(ctx, cfg, lib)

	return ui.Run(sessionMgr)
}

// list prints the library contents.
func list(cfg *config.Config, w io.Writer) error {
	lib, err := library.Open(cfg.Library)
	if err != nil {
		return errors.Wrap(err, "failed to open library")
	}

	fmt.Fprintln(w, "Tracks:")
	for _, t := range lib.Tracks() {
		fmt.Fprintf(w, "  %-20s %s (%s)\n", t.ID, t.DisplayName(), playback.FormatDuration(t.Duration))
	}
	fmt.Fprintln(w, "Playlists:")
	for _, p := range lib.Playlists() {
		fmt.Fprintf(w, "  %-20s %s [%d tracks]\n", p.ID, p.Name, len(p.TrackIDs))
	}
	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
