// Package server orchestrates all components: WordPress site, dashboard, optional COMMS and DB, HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/auction-admin/internal/config"
	"github.com/morezero/auction-admin/pkg/commsutil"
	"github.com/morezero/auction-admin/pkg/compat"
	"github.com/morezero/auction-admin/pkg/events"
	"github.com/morezero/auction-admin/pkg/store"
)

const logPrefix = "server:server"

// Server is the auction-admin orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	httpServer *http.Server
	dash       *Dashboard
	hub        *Hub
	history    *store.SnapshotRepository
}

// SetLogLevel installs the default text logger at the configured level, writing to w.
func SetLogLevel(cfg *config.Config, w io.Writer) {
	var logLevel slog.Level
	switch cfg.EffectiveLogLevel() {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetLogLevel(cfg, os.Stdout)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting auction-admin for %s", logPrefix, cfg.SiteURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}

	// Step 1: Resolve credentials
	site, err := Connect(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to site: %w", logPrefix, err)
	}

	// Step 2: Connect to COMMS (optional)
	nc, err := commsutil.ConnectOptional(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}
	s.nc = nc
	if nc != nil {
		slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, cfg.COMMSURL))
	}

	// Step 3: Connect to database (optional)
	var recorder store.Recorder = store.NoOpRecorder{}
	if cfg.DatabaseURL != "" {
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			s.close()
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool

		if cfg.RunMigrations {
			migrations, err := store.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				s.close()
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := store.RunMigrations(ctx, pool, migrations); err != nil {
				s.close()
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
		s.history = store.NewSnapshotRepository(pool)
		recorder = s.history
	}

	// Step 4: Build the dashboard
	checker, err := compat.NewChecker(cfg.PluginVersionConstraint)
	if err != nil {
		s.close()
		return err
	}
	var dash *Dashboard
	s.hub = NewHub(func() []*events.PanelChangedEvent { return dash.Events() })
	publishers := events.MultiPublisher{s.hub}
	if nc != nil {
		publishers = append(publishers, events.NewCommsPublisher(nc, &events.CommsPublisherOpts{
			GlobalSubject: cfg.PanelEventSubject,
		}))
	}
	dash, err = NewDashboard(DashboardParams{
		Site:         site,
		RestoreDelay: cfg.RestoreDelay,
		Publisher:    publishers,
		Recorder:     recorder,
		Checker:      checker,
	})
	if err != nil {
		s.close()
		return fmt.Errorf("%s - failed to build dashboard: %w", logPrefix, err)
	}
	s.dash = dash

	// Step 5: Poll queue and cron status
	stopPollers := dash.StartPollers(ctx, cfg.PollInterval)

	// Step 6: Start HTTP server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP dashboard listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - auction-admin is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	stopPollers()
	s.httpServer.Shutdown(ctx)
	s.hub.Close()
	s.close()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func (s *Server) close() {
	if s.nc != nil {
		s.nc.Drain()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
