package app

import (
	"context"
	"fmt"

	useractions "github.com/R3E-Network/action_layer/internal/app/actions/users"
	"github.com/R3E-Network/action_layer/internal/app/metrics"
	userssvc "github.com/R3E-Network/action_layer/internal/app/services/users"
	"github.com/R3E-Network/action_layer/internal/app/storage"
	"github.com/R3E-Network/action_layer/internal/app/storage/memory"
	"github.com/R3E-Network/action_layer/internal/app/system"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users storage.UserStore
}

// Options tune the application wiring.
type Options struct {
	Actions             action.Config
	RequireCapabilities bool
	PasswordCost        int
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Executor *action.Executor
	Users    *userssvc.Service
	Actions  *useractions.Set
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Users == nil {
		stores.Users = memory.New()
	}

	executor := action.NewExecutor(opts.Actions,
		action.WithDiagnostics(action.NewLogDiagnostics(log.Named("actions"))),
		action.WithObserver(metrics.ActionObserver{}),
	)
	usersService := userssvc.New(stores.Users, log.Named("users"))
	actions := useractions.NewSet(executor, usersService, useractions.Options{
		RequireCapabilities: opts.RequireCapabilities,
		PasswordCost:        opts.PasswordCost,
	}, log.Named("user-actions"))

	manager := system.NewManager()
	for _, name := range []string{"users", "actions"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Executor: executor,
		Users:    usersService,
		Actions:  actions,
	}, nil
}

// Register adds a lifecycle service, such as the HTTP server or scheduler.
func (a *Application) Register(svc system.Service) error {
	return a.manager.Register(svc)
}

// Services lists registered lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info("starting application services")
	return a.manager.Start(ctx)
}

// Stop stops all services in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("stopping application services")
	return a.manager.Stop(ctx)
}
