// Package users holds the user-facing actions. Each one is an
// action.Action[In] run through an action.Executor, so HTTP handlers and jobs
// only ever see a result.Result.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	userssvc "github.com/R3E-Network/action_layer/internal/app/services/users"
	"github.com/R3E-Network/action_layer/internal/app/storage"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/logger"
	"github.com/R3E-Network/action_layer/pkg/result"
)

// Capabilities checked by the user actions.
const (
	CapabilityCreate = "users.create"
	CapabilityUpdate = "users.update"
	CapabilityDelete = "users.delete"
	CapabilityView   = "users.view"
)

const msgEmailTaken = "This email is already registered"

// Options tune the user actions.
type Options struct {
	// RequireCapabilities enables the per-action capability checks.
	RequireCapabilities bool
	// PasswordCost is the bcrypt cost; zero selects bcrypt.DefaultCost.
	PasswordCost int
}

// Base carries the collaborators shared by every user action.
type Base struct {
	exec  *action.Executor
	users *userssvc.Service
	opts  Options
	log   *logger.Logger
}

// NewBase builds the shared action state.
func NewBase(exec *action.Executor, users *userssvc.Service, opts Options, log *logger.Logger) Base {
	if log == nil {
		log = logger.NewDefault("user-actions")
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}
	return Base{exec: exec, users: users, opts: opts, log: log}
}

// authorize enforces caps only when capability checks are enabled.
func (b Base) authorize(caller action.Caller, caps ...string) error {
	if !b.opts.RequireCapabilities {
		return nil
	}
	return action.RequirePermissions(caller, caps...)
}

func (b Base) validate(ctx context.Context, in map[string]any, rules action.Rules, messages action.Messages) (map[string]any, error) {
	return b.exec.Validate(ctx, in, rules, messages)
}

func (b Base) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.opts.PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// storeFailure maps storage sentinels onto the failure taxonomy.
func storeFailure(err error, id string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return action.NotFound("User %s not found", id)
	case errors.Is(err, storage.ErrEmailTaken):
		return action.Invalid("email", msgEmailTaken)
	case errors.Is(err, storage.ErrInvalidQuery):
		return action.Fail(http.StatusBadRequest, "%s", err.Error())
	}
	return err
}

// stringField reads a validated field as a string.
func stringField(data map[string]any, field string) string {
	switch v := data[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Set groups the user actions behind one executor.
type Set struct {
	exec *action.Executor

	Create     *CreateUser
	Update     *UpdateUser
	Get        *GetUser
	Current    *CurrentUser
	CheckEmail *CheckEmail
	Delete     *DeleteUser
	List       *ListUsers
	Report     *ReportUsers
}

// NewSet wires every user action to the same collaborators.
func NewSet(exec *action.Executor, users *userssvc.Service, opts Options, log *logger.Logger) *Set {
	base := NewBase(exec, users, opts, log)
	return &Set{
		exec:       exec,
		Create:     &CreateUser{Base: base},
		Update:     &UpdateUser{Base: base},
		Get:        &GetUser{Base: base},
		Current:    &CurrentUser{Base: base},
		CheckEmail: &CheckEmail{Base: base},
		Delete:     &DeleteUser{Base: base},
		List:       &ListUsers{Base: base},
		Report:     &ReportUsers{Base: base},
	}
}

// Executor returns the executor the actions run on.
func (s *Set) Executor() *action.Executor { return s.exec }

// Run executes a on the set's executor.
func Run[In any](ctx context.Context, s *Set, a action.Action[In], caller action.Caller, in In) result.Result {
	return action.Execute(ctx, s.exec, a, caller, in)
}
