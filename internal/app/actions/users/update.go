package users

import (
	"context"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	userssvc "github.com/R3E-Network/action_layer/internal/app/services/users"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/result"
)

var updateRules = action.Rules{
	"id":       "required",
	"name":     "omitempty,max=255",
	"email":    "omitempty,email,max=255",
	"password": "omitempty,min=8,maxbytes=72,confirmed",
	"status":   "omitempty,oneof=active inactive",
}

// UpdateUser changes the profile of an existing user. Callers may always
// update themselves; anyone else needs users.update.
type UpdateUser struct {
	Base
}

func (a *UpdateUser) Name() string { return "users.update" }

func (a *UpdateUser) Handle(ctx context.Context, caller action.Caller, in map[string]any) (result.Result, error) {
	id := stringField(in, "id")
	if !caller.Authenticated || caller.ID != id {
		if err := a.authorize(caller, CapabilityUpdate); err != nil {
			return result.Result{}, err
		}
	}
	data, err := a.validate(ctx, in, updateRules, nil)
	if err != nil {
		return result.Result{}, err
	}

	exists, err := a.users.Exists(ctx, id)
	if err != nil {
		return result.Result{}, err
	}
	if !exists {
		return result.Result{}, action.NotFound("User %s not found", id)
	}

	changes := userssvc.Changes{
		Name:  stringField(data, "name"),
		Email: stringField(data, "email"),
	}
	if changes.Email != "" {
		taken, err := a.users.EmailExists(ctx, changes.Email, id)
		if err != nil {
			return result.Result{}, err
		}
		if taken {
			return result.Result{}, action.Invalid("email", msgEmailTaken)
		}
	}
	if password := stringField(data, "password"); password != "" {
		if changes.PasswordHash, err = a.hashPassword(password); err != nil {
			return result.Result{}, err
		}
	}
	if status := stringField(data, "status"); status != "" {
		changes.Status = user.Status(status)
	}

	updated, err := a.users.Update(ctx, id, changes)
	if err != nil {
		return result.Result{}, storeFailure(err, id)
	}
	return result.Success(updated.Public(), result.WithMessage("User updated successfully")), nil
}
