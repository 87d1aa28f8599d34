// Package runtime assembles the server process from configuration.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/action_layer/internal/app"
	"github.com/R3E-Network/action_layer/internal/app/httpapi"
	"github.com/R3E-Network/action_layer/internal/app/jobs"
	"github.com/R3E-Network/action_layer/internal/app/storage"
	"github.com/R3E-Network/action_layer/internal/app/storage/cache"
	"github.com/R3E-Network/action_layer/internal/app/storage/postgres"
	"github.com/R3E-Network/action_layer/internal/app/system"
	"github.com/R3E-Network/action_layer/internal/config"
	"github.com/R3E-Network/action_layer/internal/middleware"
	"github.com/R3E-Network/action_layer/pkg/logger"
)

const limiterCleanupInterval = time.Minute

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler http.Handler
	server  *http.Server
	limiter *middleware.RateLimiter

	db        *sqlx.DB
	redis     *redis.Client
	auditSink *httpapi.FileAuditSink

	mu          sync.Mutex
	addr        string
	serveErr    chan error
	stopCleanup chan struct{}
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Build(cfg)
}

// Build constructs the application from cfg.
func Build(cfg *config.Config) (*Application, error) {
	log := logger.New(cfg.Logging)
	a := &Application{
		cfg:         cfg,
		log:         log,
		serveErr:    make(chan error, 1),
		stopCleanup: make(chan struct{}),
	}

	users, err := a.buildUserStore()
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	a.app, err = app.New(app.Stores{Users: users}, app.Options{
		Actions:             cfg.Actions,
		RequireCapabilities: cfg.Auth.RequireCapabilities,
		PasswordCost:        cfg.Auth.PasswordCost,
	}, log)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	if cfg.Jobs.Enabled {
		scheduler := jobs.NewScheduler(log.Named("jobs"))
		if err := scheduler.Add(jobs.ReportJob(a.app.Actions, cfg.Jobs.ReportSchedule)); err != nil {
			a.closeResources()
			return nil, err
		}
		if err := a.app.Register(scheduler); err != nil {
			a.closeResources()
			return nil, err
		}
	}

	a.auditSink, err = httpapi.NewFileAuditSink(cfg.Audit.Path)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	var sink httpapi.AuditSink
	if a.auditSink != nil {
		sink = a.auditSink
	}

	if cfg.RateLimit.RPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log.Named("ratelimit"))
	}
	a.handler = httpapi.NewHandler(a.app, httpapi.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		CORSOrigins: cfg.CORS.Origins(),
		RateLimiter: a.limiter,
		Audit:       httpapi.NewAuditLog(cfg.Audit.Size, sink),
		Logger:      log.Named("http"),
	})
	a.server = &http.Server{
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := a.app.Register(system.FuncService{
		ServiceName: "http",
		StartFunc:   a.startHTTP,
		StopFunc:    a.server.Shutdown,
	}); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

// Handler returns the HTTP handler served by the application.
func (a *Application) Handler() http.Handler { return a.handler }

// Addr returns the bound listen address once the server is running.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run starts every service and blocks until ctx is cancelled or the HTTP
// server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}
	if a.limiter != nil {
		a.limiter.StartCleanup(limiterCleanupInterval, a.stopCleanup)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-a.serveErr:
		return err
	}
}

// Shutdown stops services in reverse order and releases external resources.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.app.Stop(shutdownCtx)
	a.closeResources()
	return err
}

func (a *Application) startHTTP(context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr(), err)
	}
	a.mu.Lock()
	a.addr = ln.Addr().String()
	a.mu.Unlock()

	go func() {
		a.log.Infof("HTTP server listening on %s", ln.Addr())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- err
		}
	}()
	return nil
}

func (a *Application) buildUserStore() (storage.UserStore, error) {
	var users storage.UserStore
	switch {
	case a.cfg.Database.UsesPostgres():
		db, err := openDatabase(a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		if a.cfg.Database.Migrate {
			if err := postgres.Migrate(db.DB); err != nil {
				return nil, err
			}
		}
		users = postgres.New(db)
	case a.cfg.Database.Driver == "" || a.cfg.Database.Driver == "memory":
		// app.New falls back to the in-memory store.
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", a.cfg.Database.Driver)
	}

	if a.cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		users = cache.NewUserStore(users, a.redis, a.cfg.Redis.CacheTTL, a.log.Named("user-cache"))
	}
	return users, nil
}

func (a *Application) closeResources() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCleanup != nil {
		close(a.stopCleanup)
		a.stopCleanup = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis client")
		}
		a.redis = nil
	}
	if a.auditSink != nil {
		if err := a.auditSink.Close(); err != nil {
			a.log.WithError(err).Warn("error closing audit log")
		}
		a.auditSink = nil
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
