package users

import (
	"context"

	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/result"
)

// GetUser fetches one user's public profile.
type GetUser struct {
	Base
}

func (a *GetUser) Name() string { return "users.get" }

func (a *GetUser) Handle(ctx context.Context, caller action.Caller, id string) (result.Result, error) {
	if !caller.Authenticated || caller.ID != id {
		if err := a.authorize(caller, CapabilityView); err != nil {
			return result.Result{}, err
		}
	}
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return result.Result{}, storeFailure(err, id)
	}
	return result.Success(u.Public()), nil
}

// CurrentUser returns the profile of the authenticated caller.
type CurrentUser struct {
	Base
}

func (a *CurrentUser) Name() string { return "users.current" }

func (a *CurrentUser) Handle(ctx context.Context, caller action.Caller, _ struct{}) (result.Result, error) {
	if err := action.RequireAuthenticated(caller); err != nil {
		return result.Result{}, err
	}
	u, err := a.users.Get(ctx, caller.ID)
	if err != nil {
		return result.Result{}, storeFailure(err, caller.ID)
	}
	return result.Success(u.Public()), nil
}
