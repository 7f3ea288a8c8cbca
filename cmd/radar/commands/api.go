package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/radar/backend/internal/api"
	"github.com/wonny/radar/backend/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Starts the REST and WebSocket API.

Endpoints:
  GET    /health
  GET    /api/radar?preset=&min_roe=&max_pe=&pool=&pit=
  GET    /api/universe
  GET    /api/watchlist
  POST   /api/watchlist
  DELETE /api/watchlist/{code}
  GET    /ws/sync?mode=&date=&codes=   (WebSocket progress stream)

Example:
  go run ./cmd/radar api
  go run ./cmd/radar api --port 8080`,
	Args: cobra.NoArgs,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "listen port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	router := api.NewRouter(api.Handlers{
		Radar:    handlers.NewRadarHandler(a.radar, a.strategy, a.log),
		Universe: handlers.NewUniverseHandler(a.resolver, a.repo.Instruments, a.log),
		Sync:     handlers.NewSyncHandler(a.pipeline, a.log),
	}, a.log)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	PrintSuccess(fmt.Sprintf("Server running on http://localhost:%s", a.cfg.Port))
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
