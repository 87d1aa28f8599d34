package users

import (
	"context"
	"net/http"

	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/result"
)

var checkEmailRules = action.Rules{
	"email": "required,email",
}

// CheckEmail reports whether an address is still free to register.
type CheckEmail struct {
	Base
}

func (a *CheckEmail) Name() string { return "users.check_email" }

func (a *CheckEmail) Handle(ctx context.Context, _ action.Caller, in map[string]any) (result.Result, error) {
	data, err := a.validate(ctx, in, checkEmailRules, nil)
	if err != nil {
		return result.Result{}, err
	}

	taken, err := a.users.EmailExists(ctx, stringField(data, "email"), "")
	if err != nil {
		return result.Result{}, err
	}
	if taken {
		return result.Error(msgEmailTaken,
			result.WithErrors(map[string][]string{"email": {msgEmailTaken}}),
			result.WithStatus(http.StatusConflict),
		), nil
	}
	return result.Success(map[string]bool{"available": true}, result.WithMessage("Email available")), nil
}
