// Package action runs business operations and converts every outcome into a
// result.Result. Operations signal anticipated failures with
// ValidationFailure, PermissionFailure or GenericFailure; anything else,
// panics included, becomes a 500. Failures never escape Run.
//
// A concrete action typically checks permissions, validates its input and
// then runs its business logic:
//
//	func (a *CreateUser) Handle(ctx context.Context, caller action.Caller, in map[string]any) (result.Result, error) {
//	    if err := action.RequirePermissions(caller, "users.create"); err != nil {
//	        return result.Result{}, err
//	    }
//	    data, err := a.Validate(ctx, in, rules, messages)
//	    if err != nil {
//	        return result.Result{}, err
//	    }
//	    ...
//	    return result.Success(user, result.WithStatus(http.StatusCreated)), nil
//	}
package action

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/R3E-Network/action_layer/pkg/logger"
	"github.com/R3E-Network/action_layer/pkg/result"
)

// Config holds executor settings.
type Config struct {
	// VerboseActionLogging records a diagnostic for every unexpected failure.
	VerboseActionLogging bool `yaml:"verbose_logging" env:"APP_LOGS_ACTIONS_ENABLED"`
}

// Operation is the business logic run by the executor.
type Operation func(ctx context.Context) (result.Result, error)

// Action is a named unit of business logic over a typed input.
type Action[In any] interface {
	Name() string
	Handle(ctx context.Context, caller Caller, in In) (result.Result, error)
}

// Func adapts a function to the Action interface.
type Func[In any] struct {
	ActionName string
	Fn         func(ctx context.Context, caller Caller, in In) (result.Result, error)
}

func (f Func[In]) Name() string { return f.ActionName }

func (f Func[In]) Handle(ctx context.Context, caller Caller, in In) (result.Result, error) {
	return f.Fn(ctx, caller, in)
}

// Observer is notified of every completed run.
type Observer interface {
	ObserveAction(name string, res result.Result, elapsed time.Duration)
}

// Executor runs operations and normalizes their outcome. It holds no mutable
// state and is safe for concurrent use.
type Executor struct {
	cfg         Config
	diagnostics DiagnosticLogger
	validator   Validator
	observer    Observer
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithDiagnostics sets the collaborator that records unexpected failures.
func WithDiagnostics(d DiagnosticLogger) ExecutorOption {
	return func(e *Executor) { e.diagnostics = d }
}

// WithValidator sets the validation collaborator used by Validate.
func WithValidator(v Validator) ExecutorOption {
	return func(e *Executor) { e.validator = v }
}

// WithObserver sets the run observer.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor builds an executor. Diagnostics default to a logrus logger and
// validation to the rule validator.
func NewExecutor(cfg Config, opts ...ExecutorOption) *Executor {
	e := &Executor{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.diagnostics == nil {
		e.diagnostics = NewLogDiagnostics(logger.NewDefault("actions"))
	}
	if e.validator == nil {
		e.validator = NewRuleValidator()
	}
	return e
}

// Config returns the executor configuration.
func (e *Executor) Config() Config { return e.cfg }

// Validator returns the validation collaborator.
func (e *Executor) Validator() Validator { return e.validator }

// Run invokes op and converts its outcome. input is only used for
// diagnostics.
func (e *Executor) Run(ctx context.Context, name string, input any, op Operation) (res result.Result) {
	start := time.Now()
	if e.observer != nil {
		defer func() { e.observer.ObserveAction(name, res, time.Since(start)) }()
	}

	out, stack, err := invoke(ctx, op)
	if err == nil && out.StatusCode() == 0 {
		err = &UnexpectedFailure{Message: fmt.Sprintf("action %s returned an empty result", name)}
	}
	if err == nil {
		return out
	}
	return e.fromFailure(ctx, name, input, err, stack)
}

// Validate checks input against rules with the executor's validator.
func (e *Executor) Validate(ctx context.Context, input map[string]any, rules Rules, messages Messages) (map[string]any, error) {
	return ValidateWith(ctx, e.validator, input, rules, messages)
}

// Execute runs a typed action on behalf of caller.
func Execute[In any](ctx context.Context, e *Executor, a Action[In], caller Caller, in In) result.Result {
	return e.Run(ctx, a.Name(), in, func(ctx context.Context) (result.Result, error) {
		return a.Handle(ctx, caller, in)
	})
}

func invoke(ctx context.Context, op Operation) (res result.Result, stack []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &UnexpectedFailure{Message: fmt.Sprintf("%v", rec), Cause: rec}
			stack = debug.Stack()
		}
	}()
	res, err = op(ctx)
	return res, nil, err
}

func (e *Executor) fromFailure(ctx context.Context, name string, input any, err error, stack []byte) result.Result {
	var (
		validation *ValidationFailure
		permission *PermissionFailure
		generic    *GenericFailure
	)
	switch {
	case errors.As(err, &validation):
		return result.ValidationError(validation.Errors, result.WithMessage(validation.Message))
	case errors.As(err, &permission):
		return result.Error(permission.Message, result.WithStatus(permission.StatusCode))
	case errors.As(err, &generic):
		return result.Error(generic.Message, result.WithStatus(generic.StatusCode))
	}

	if e.cfg.VerboseActionLogging {
		trace := string(stack)
		if trace == "" {
			trace = fmt.Sprintf("%+v", err)
		}
		e.diagnostics.LogFailure(ctx, Diagnostic{
			Action:  name,
			Message: err.Error(),
			Stack:   trace,
			Input:   input,
		})
	}
	return result.Error(err.Error(), result.WithStatus(http.StatusInternalServerError))
}
