package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/paygw-chargebee/internal/auth"
	"github.com/frahmantamala/paygw-chargebee/internal/checkout"
	"github.com/frahmantamala/paygw-chargebee/internal/transport/rest"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that sends users to the hosted checkout and handles their return`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	rootCmd.AddCommand(httpServerCmd)
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	router, err := setupRoutes(deps)
	if err != nil {
		slog.Error("Failed to set up routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	tokens, err := newTokenGenerator(deps)
	if err != nil {
		return nil, err
	}

	checkoutService := checkout.NewService(
		deps.Purchases,
		deps.Gateways,
		deps.Engine,
		deps.Queue,
		deps.Notifier,
		checkout.Config{
			BaseURL:      deps.Config.Server.BaseURL,
			ReturnPath:   deps.Config.Gateway.ReturnPath,
			InitialDelay: deps.Config.Tasks.InitialDelay,
			MaxAttempts:  deps.Config.Tasks.MaxAttempts,
		},
		deps.Logger,
	)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router,
		rest.NewHealthHandler(deps.SQL.DB, deps.Redis),
		auth.NewHandler(tokens, deps.Config.Security.CookieName),
		checkout.NewHandler(checkoutService),
		deps.Logger,
	)
	return router, nil
}

// newTokenGenerator loads the verification key and, when configured, the
// signing key used for development tokens.
func newTokenGenerator(deps *Dependencies) (*auth.JWTTokenGenerator, error) {
	sec := deps.Config.Security
	pub, err := sec.GetPublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load jwt public key: %w", err)
	}

	if sec.JWTPrivateKey == "" {
		return auth.NewJWTTokenGenerator(nil, pub, sec.AccessTokenDuration), nil
	}
	key, err := sec.GetPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load jwt private key: %w", err)
	}
	return auth.NewJWTTokenGenerator(key, pub, sec.AccessTokenDuration), nil
}
