package users

import (
	"context"
	"net/http"
	"time"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/result"
)

var createRules = action.Rules{
	"name":     "required,max=255",
	"email":    "required,email,max=255",
	"password": "required,min=8,maxbytes=72,confirmed",
}

var createMessages = action.Messages{
	"password.confirmed": "The password confirmation does not match.",
}

// CreateUser registers a new user from name, email, password and
// password_confirmation.
type CreateUser struct {
	Base
}

func (a *CreateUser) Name() string { return "users.create" }

func (a *CreateUser) Handle(ctx context.Context, caller action.Caller, in map[string]any) (result.Result, error) {
	if err := a.authorize(caller, CapabilityCreate); err != nil {
		return result.Result{}, err
	}
	data, err := a.validate(ctx, in, createRules, createMessages)
	if err != nil {
		return result.Result{}, err
	}

	email := stringField(data, "email")
	taken, err := a.users.EmailExists(ctx, email, "")
	if err != nil {
		return result.Result{}, err
	}
	if taken {
		return result.Result{}, action.Invalid("email", msgEmailTaken)
	}

	hash, err := a.hashPassword(stringField(data, "password"))
	if err != nil {
		return result.Result{}, err
	}

	verified := time.Now().UTC()
	created, err := a.users.Create(ctx, user.User{
		Name:            stringField(data, "name"),
		Email:           email,
		PasswordHash:    hash,
		EmailVerifiedAt: &verified,
	})
	if err != nil {
		return result.Result{}, storeFailure(err, "")
	}

	a.log.WithField("user_id", created.ID).Info("user registered")
	return result.Success(created.Public(),
		result.WithMessage("User created successfully"),
		result.WithStatus(http.StatusCreated),
	), nil
}
