package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	"github.com/R3E-Network/action_layer/internal/app/storage"
	"github.com/R3E-Network/action_layer/pkg/logger"
)

// Service manages user records.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Changes lists the fields Update may overwrite. Empty values are left as-is.
type Changes struct {
	Name         string
	Email        string
	PasswordHash string
	Status       user.Status
}

// Create registers a new user. The email is stored lower-cased.
func (s *Service) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
	if u.Name == "" {
		return user.User{}, fmt.Errorf("name is required")
	}
	if u.Email == "" {
		return user.User{}, fmt.Errorf("email is required")
	}

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", created.ID).Info("user created")
	return created, nil
}

// Update applies changes to an existing user.
func (s *Service) Update(ctx context.Context, id string, changes Changes) (user.User, error) {
	existing, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if name := strings.TrimSpace(changes.Name); name != "" {
		existing.Name = name
	}
	if email := NormalizeEmail(changes.Email); email != "" {
		existing.Email = email
	}
	if changes.PasswordHash != "" {
		existing.PasswordHash = changes.PasswordHash
	}
	if changes.Status != "" {
		existing.Status = changes.Status
	}

	updated, err := s.store.UpdateUser(ctx, existing)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("user updated")
	return updated, nil
}

// Get fetches a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// FindByEmail fetches a user by email address, ignoring case.
func (s *Service) FindByEmail(ctx context.Context, email string) (user.User, error) {
	return s.store.GetUserByEmail(ctx, NormalizeEmail(email))
}

// EmailExists reports whether email is registered. When exceptID is set, a
// match on that user does not count.
func (s *Service) EmailExists(ctx context.Context, email, exceptID string) (bool, error) {
	u, err := s.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.ID != exceptID, nil
}

// Exists reports whether a user with the identifier is stored.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Paginate returns one page of users matching q.
func (s *Service) Paginate(ctx context.Context, q storage.Query) (storage.Page, error) {
	return s.store.ListUsers(ctx, q)
}

// Latest returns up to limit most recently created users.
func (s *Service) Latest(ctx context.Context, limit int) ([]user.User, error) {
	if limit <= 0 {
		limit = storage.DefaultPerPage
	}
	page, err := s.store.ListUsers(ctx, storage.Query{SortBy: "created_at", SortDirection: "desc", PerPage: limit})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Count returns the number of users matching filters.
func (s *Service) Count(ctx context.Context, filters map[string][]string) (int, error) {
	return s.store.CountUsers(ctx, filters)
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
