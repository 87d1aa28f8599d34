package users

import (
	"context"

	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/result"
)

// DeleteUser removes a user by id.
type DeleteUser struct {
	Base
}

func (a *DeleteUser) Name() string { return "users.delete" }

func (a *DeleteUser) Handle(ctx context.Context, caller action.Caller, id string) (result.Result, error) {
	if err := a.authorize(caller, CapabilityDelete); err != nil {
		return result.Result{}, err
	}
	if id == "" {
		return result.Result{}, action.Invalid("id", "The id field is required.")
	}
	if err := a.users.Delete(ctx, id); err != nil {
		return result.Result{}, storeFailure(err, id)
	}
	return result.Success(nil, result.WithMessage("User deleted successfully")), nil
}
