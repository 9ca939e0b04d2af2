package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/rflorenc/asana-automation-bridge/internal/api"
	"github.com/rflorenc/asana-automation-bridge/internal/config"
	"github.com/rflorenc/asana-automation-bridge/internal/logging"
	"github.com/rflorenc/asana-automation-bridge/internal/models"
	"github.com/rflorenc/asana-automation-bridge/internal/options"
	"github.com/rflorenc/asana-automation-bridge/internal/webhook"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var flags config.Flags

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Asana automation bridge",
		Long: `bridge connects Asana accounts to automation tooling.

It resolves pick-list options from Asana resources, registers webhooks
through Asana's handshake and verifies every delivery before recording it.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&flags.ConfigFile, "config", "", "Path to config file (YAML)")
	rootCmd.Flags().StringVar(&flags.Listen, "listen", "", "HTTP listen address (default :8080)")
	rootCmd.Flags().StringVar(&flags.PublicURL, "public-url", "", "Externally reachable base URL used in webhook targets")
	rootCmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogJSON)

	server := &api.Server{
		Connections:    models.NewConnectionStore(),
		Jobs:           models.NewJobStore(),
		Feeds:          models.NewFeedStore(models.DefaultFeedCapacity),
		Hooks:          webhook.NewManager(cfg.PublicURL, cfg.HandshakeTimeout, logger),
		Options:        options.NewRegistry(),
		APIBaseURL:     cfg.APIBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodySize:    cfg.MaxBodySize,
		Logger:         logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load pre-configured connections from config file
	for _, cc := range cfg.Connections {
		conn := &models.Connection{
			Name:          cc.Name,
			AccessToken:   cc.AccessToken,
			RefreshToken:  cc.RefreshToken,
			WebhookSecret: cc.WebhookSecret,
		}
		server.Connections.Create(conn)
		logger.Info("loaded connection", "name", conn.Name, "id", conn.ID)
		checkAuth(ctx, server, conn, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("asana automation bridge starting", "version", version, "listen", cfg.Listen, "public_url", cfg.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Webhooks point at this process; remove them before it goes away.
	err = server.Hooks.DeregisterAll(shutdownCtx, func(connID string) webhook.BatchDeleter {
		conn := server.Connections.Get(connID)
		if conn == nil {
			return nil
		}
		return server.ClientFor(conn)
	})
	if err != nil {
		logger.Warn("some webhooks could not be removed", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("bridge stopped gracefully")
	return nil
}

// checkAuth verifies a connection's credentials early, like a test from the API.
func checkAuth(ctx context.Context, server *api.Server, conn *models.Connection, logger hclog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	me, err := server.ClientFor(conn).Me(ctx)
	if err == nil && me == nil {
		err = errors.New("users/me returned no user")
	}
	if err != nil {
		server.Connections.SetAuth(conn.ID, "error", err.Error())
		logger.Warn("auth failed", "connection", conn.Name, "error", err)
		return
	}
	server.Connections.SetAuth(conn.ID, "ok", "")
	logger.Info("auth ok", "connection", conn.Name, "user", me.Name)
}
