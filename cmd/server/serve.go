package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-pipeline/internal/config"
	"crm-pipeline/internal/database"
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/handlers"
	"crm-pipeline/internal/logging"
	"crm-pipeline/internal/server"
	"crm-pipeline/internal/services/activity"
	"crm-pipeline/internal/services/assignment"
	"crm-pipeline/internal/services/column"
	"crm-pipeline/internal/services/interaction"
	"crm-pipeline/internal/services/lead"
	"crm-pipeline/internal/services/timeline"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate, seed and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, db, catalog, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	hub := events.NewHub(0)
	var publisher events.Publisher = hub
	if cfg.NotifyBackend == config.NotifyPostgres {
		relay := events.NewPostgresRelay(db, cfg.DBDSN, hub)
		publisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				slog.Error("event relay stopped", "error", err)
			}
		}()
	}

	columns := column.NewService(db, publisher, catalog)
	if err := database.Seed(ctx, db, database.SeedOptions{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		Provision:     columns.ProvisionDefaults,
	}); err != nil {
		return err
	}

	h := handlers.New(handlers.Deps{
		DB:           db,
		Columns:      columns,
		Leads:        lead.NewService(db, publisher, cfg.PageSize),
		Activities:   activity.NewService(db, publisher, cfg.PageSize),
		Assignments:  assignment.NewService(db, publisher),
		Interactions: interaction.NewService(db, publisher, cfg.PageSize),
		Timeline:     timeline.NewService(db),
		Hub:          hub,
	})

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: server.NewRouter(cfg, db, h),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "notify_backend", cfg.NotifyBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// bootstrap loads the configuration, installs the logger, connects and
// migrates the store, and loads the lane template catalog.
func bootstrap(ctx context.Context) (*config.Config, *gorm.DB, *column.Catalog, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, catalog, nil
}

func loadCatalog(cfg *config.Config) (*column.Catalog, error) {
	if cfg.ColumnTemplatesFile == "" {
		return column.DefaultCatalog(), nil
	}
	catalog, err := column.LoadCatalogFile(cfg.ColumnTemplatesFile)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded column templates", "file", cfg.ColumnTemplatesFile, "count", len(catalog.All()))
	return catalog, nil
}
