package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shahcompbio/alhena-lite/internal/api"
	"github.com/shahcompbio/alhena-lite/internal/config"
	"github.com/shahcompbio/alhena-lite/internal/hmmcopy"
	"github.com/shahcompbio/alhena-lite/internal/qc"
	"github.com/shahcompbio/alhena-lite/internal/service"
	"github.com/shahcompbio/alhena-lite/internal/session"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server.

Settings are read from the YAML file given by --config (defaults apply when
it does not exist) and may be overridden by ALHENA_* environment variables,
e.g. ALHENA_SERVER_PORT=8080 or ALHENA_SESSION_BACKEND=sqlite.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "config/server.yaml", "Path to configuration file")
}

func serve(cfg *config.Config) error {
	log.Printf("Starting alhena-lite server on port %d", cfg.Server.Port)

	store, err := session.Open(session.Config{
		Backend:     cfg.Session.Backend,
		TTL:         time.Duration(cfg.Session.TTLMinutes) * time.Minute,
		MaxSizeMB:   cfg.Session.MaxSizeMB,
		Shards:      cfg.Session.Shards,
		MaxSessions: cfg.Session.MaxSessions,
		SQLitePath:  cfg.Session.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer store.Close()

	codec, err := session.NewCodec(cfg.Session.Compression == "zstd")
	if err != nil {
		return err
	}
	defer codec.Close()

	log.Printf("Session store: backend=%s ttl=%dm compression=%s",
		cfg.Session.Backend, cfg.Session.TTLMinutes, cfg.Session.Compression)
	log.Printf("Dataset root: %s", cfg.Data.Root)

	qcService := service.NewQCService(service.QCServiceConfig{
		Loader:  hmmcopy.NewDirLoader(),
		Cache:   session.NewCache(store, codec),
		Root:    cfg.Data.Root,
		Options: qc.Options{NativeBooleans: cfg.API.NativeBooleans},
	})

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Service:     qcService,
		Cookies:     session.NewCookies(cfg.Session.CookieName, cfg.Session.Secret),
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
