package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loglens/loglens/internal/store"
	"github.com/loglens/loglens/internal/web"
)

var (
	port     int
	logFile  string
	password string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a log file over HTTP",
	Long: `Start an HTTP server that serves an NDJSON log file over bulk JSON,
plain-text, live-stream, and browser endpoints.`,
	Example: `  loglens serve --log-file app.ndjson --port 8080
  LOG_FILE_PATH=app.ndjson LOG_PASSWORD=secret loglens serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&logFile, "log-file", "", "Path to the NDJSON log file (falls back to LOG_FILE_PATH)")
	serveCmd.Flags().StringVar(&password, "password", "", "Shared secret required on every request (falls back to LOG_PASSWORD)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := GetLogger()

	if logFile == "" {
		logFile = os.Getenv("LOG_FILE_PATH")
	}
	if password == "" {
		password = os.Getenv("LOG_PASSWORD")
	}
	if envPort := os.Getenv("PORT"); envPort != "" && !cmd.Flags().Changed("port") {
		if _, err := fmt.Sscanf(envPort, "%d", &port); err != nil {
			return fmt.Errorf("invalid PORT environment value %q: %w", envPort, err)
		}
	}

	if err := validateLogFile(logFile); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("a shared secret is required (set --password or LOG_PASSWORD)")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	logger.Info("starting loglens server", "log_file", logFile, "port", port)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cache := store.NewOffsetCache()
	reader := store.NewStreamReader(cache)
	tailer := store.NewTailer(logFile, logger)

	srv := web.NewServer(web.Config{
		LogPath: logFile,
		Secret:  password,
		Version: Version,
	}, reader, tailer, logger)

	tailerDone := make(chan error, 1)
	go func() {
		tailerDone <- tailer.Run(ctx)
	}()

	select {
	case <-tailer.Ready():
		srv.MarkReady()
	case <-ctx.Done():
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: srv.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			cancel()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	if err := <-tailerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("tailer stopped with error", "error", err)
	}

	logger.Info("loglens server stopped")
	return nil
}
