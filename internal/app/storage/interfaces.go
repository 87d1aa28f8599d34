package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when an email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidQuery is returned for unknown sort or filter fields and for
	// out of range pages.
	ErrInvalidQuery = errors.New("invalid query")
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	// MaxPage keeps Offset within a 32-bit integer.
	MaxPage        = (1<<31 - 1) / MaxPerPage
)

// SortableFields lists the columns a listing may be ordered by.
var SortableFields = map[string]bool{
	"id":         true,
	"name":       true,
	"email":      true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// FilterableFields lists the columns a listing may be filtered on.
var FilterableFields = map[string]bool{
	"status": true,
	"email":  true,
	"name":   true,
}

// SearchableFields are matched by Query.Search.
var SearchableFields = []string{"name", "email"}

// Query describes a paginated listing.
type Query struct {
	Search        string
	Filters       map[string][]string
	SortBy        string
	SortDirection string
	Page          int
	PerPage       int
}

// Normalize fills defaults and rejects unknown fields.
func (q Query) Normalize() (Query, error) {
	q.Search = strings.TrimSpace(q.Search)
	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	if !SortableFields[q.SortBy] {
		return Query{}, fmt.Errorf("%w: cannot sort by %q", ErrInvalidQuery, q.SortBy)
	}
	q.SortDirection = strings.ToLower(strings.TrimSpace(q.SortDirection))
	switch q.SortDirection {
	case "asc", "desc":
	case "":
		q.SortDirection = "desc"
	default:
		return Query{}, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidQuery, q.SortDirection)
	}
	filters := make(map[string][]string, len(q.Filters))
	for field, values := range q.Filters {
		if len(values) == 0 {
			continue
		}
		if !FilterableFields[field] {
			return Query{}, fmt.Errorf("%w: cannot filter by %q", ErrInvalidQuery, field)
		}
		filters[field] = values
	}
	q.Filters = filters
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		return Query{}, fmt.Errorf("%w: page %d exceeds %d", ErrInvalidQuery, q.Page, MaxPage)
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q, nil
}

// Offset returns the number of rows skipped before the current page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Page is one page of a listing.
type Page struct {
	Items   []user.User
	Total   int
	Page    int
	PerPage int
}

// LastPage returns the number of the final page, at least 1.
func (p Page) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, q Query) (Page, error)
	CountUsers(ctx context.Context, filters map[string][]string) (int, error)
	DeleteUser(ctx context.Context, id string) error
}
