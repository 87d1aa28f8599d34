package users

import (
	"context"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	"github.com/R3E-Network/action_layer/internal/app/storage"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/result"
)

// Listing is one page of user profiles.
type Listing struct {
	Items    []user.Profile `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PerPage  int            `json:"per_page"`
	LastPage int            `json:"last_page"`
}

// ListUsers pages through users with optional search, filters and sorting.
type ListUsers struct {
	Base
}

func (a *ListUsers) Name() string { return "users.list" }

func (a *ListUsers) Handle(ctx context.Context, caller action.Caller, q storage.Query) (result.Result, error) {
	if err := a.authorize(caller, CapabilityView); err != nil {
		return result.Result{}, err
	}
	page, err := a.users.Paginate(ctx, q)
	if err != nil {
		return result.Result{}, storeFailure(err, "")
	}

	listing := Listing{
		Items:    make([]user.Profile, 0, len(page.Items)),
		Total:    page.Total,
		Page:     page.Page,
		PerPage:  page.PerPage,
		LastPage: page.LastPage(),
	}
	for _, u := range page.Items {
		listing.Items = append(listing.Items, u.Public())
	}
	return result.Success(listing), nil
}
