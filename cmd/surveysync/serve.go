package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"surveysync/internal/handler"
	"surveysync/internal/middleware"
	"surveysync/internal/model"
	"surveysync/internal/router"
	"surveysync/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic sync scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Printf("Starting %s %s...", cfg.App.Name, cfg.App.Version)
		log.Printf("Environment: %s", cfg.App.Environment)
		if cfg.App.IsProduction() && len(cfg.App.APIKeys) == 0 {
			return &model.ConfigurationError{Reason: "API_KEYS must be set when APP_ENV=production"}
		}

		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		scheduler := service.NewSyncScheduler(a.svc, a.store, a.opts, service.SchedulerConfig{
			Interval:   cfg.Sync.Interval,
			Timeout:    cfg.Sync.Timeout,
			RunOnStart: cfg.Sync.OnStart,
		})

		// Initialize handlers
		healthHandler := handler.New(cfg.App.Name, cfg.App.Version, a.store)
		syncHandler := handler.NewSyncHandler(scheduler)
		submissionsHandler := handler.NewSubmissionsHandler(a.store)
		adminHandler := handler.NewAdminHandler(a.store, scheduler, storageType(cfg.Storage))

		authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
			APIKeys:     cfg.App.APIKeys,
			PublicPaths: router.PublicPaths,
		})

		r := router.New(router.Config{
			Handler:            healthHandler,
			SyncHandler:        syncHandler,
			SubmissionsHandler: submissionsHandler,
			AdminHandler:       adminHandler,
			AuthMiddleware:     authMiddleware,
		})

		srv := &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		scheduler.Start()

		// Start server in goroutine
		serverErr := make(chan error, 1)
		go func() {
			log.Printf("Server listening on %s", cfg.Server.Address())
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
		}()

		// Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-serverErr:
			scheduler.Stop()
			return err
		}
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		scheduler.Stop()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		log.Println("Server stopped")
		return nil
	},
}
