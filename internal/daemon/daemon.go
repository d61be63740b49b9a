package daemon

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

	"github.com/avatarstudio/avatargw/internal/api"
	"github.com/avatarstudio/avatargw/internal/gateway"
	"github.com/avatarstudio/avatargw/internal/health"
	"github.com/avatarstudio/avatargw/internal/infra/sqlite"
	"github.com/avatarstudio/avatargw/internal/job"
	"github.com/avatarstudio/avatargw/internal/notify"
	"github.com/avatarstudio/avatargw/internal/vendor"
)

// Daemon is the avatargw runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Log     *slog.Logger
	DB      *sqlite.DB
	Gateway *gateway.Client
	Jobs    *job.Service
	Events  *notify.Hub
	Bridge  *notify.Bridge
	Health  *health.Checker
	Server  *api.Server
	cancel  context.CancelFunc
}

// New loads configuration and creates a Daemon.
func New(version string) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, version)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, version string) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	db, err := sqlite.Open(Home())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		DefaultTimeout: cfg.Upstream.DefaultTimeout,
	}, gateway.WithLogger(logger.With("component", "gateway")))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("upstream gateway: %w", err)
	}

	jobs := job.NewService(gw, vendor.DefaultRegistry(), db, job.Config{
		Poll: job.PollPolicy{
			Interval:    cfg.Polling.Interval,
			MaxAttempts: cfg.Polling.MaxAttempts,
			MaxElapsed:  cfg.Polling.MaxElapsed,
		},
		TTSTimeout: cfg.Upstream.TTSTimeout,
	}, logger)

	hub := notify.NewHub(logger)
	locales := notify.NewLocales(cfg.Locale.Default, cfg.Locale.Supported)
	bridge := notify.NewBridge(hub, locales, logger)

	checker := health.NewChecker(db, Home(), gw, cfg.Upstream.AuthPath)

	srv := api.NewServer(jobs, bridge)
	srv.SetLogger(logger)
	srv.SetVersion(version)
	srv.SetEvents(hub)
	srv.SetHistory(db)
	srv.SetDrafts(db)
	srv.SetHealth(checker)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	srv.SetRequestTimeout(cfg.API.RequestTimeout)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:  cfg,
		Log:     logger.With("component", "daemon"),
		DB:      db,
		Gateway: gw,
		Jobs:    jobs,
		Events:  hub,
		Bridge:  bridge,
		Health:  checker,
		Server:  srv,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		// No WriteTimeout: inline polls and the event stream are long-lived.
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Open event streams would otherwise hold Shutdown until the deadline.
		d.Events.Close()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.Log.Info("serving", "addr", "http://"+addr, "upstream", d.Gateway.BaseURL(), "metrics", d.Config.Telemetry.Prometheus)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Events != nil {
		d.Events.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
