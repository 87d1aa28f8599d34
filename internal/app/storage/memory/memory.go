package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	"github.com/R3E-Network/action_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[string]user.User
	usersByEmail map[string]string
}

var _ storage.UserStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		users:        make(map[string]user.User),
		usersByEmail: make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return strconv.FormatInt(id, 10)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(u.Email)
	if _, taken := s.usersByEmail[key]; taken {
		return user.User{}, storage.ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}
	if u.Status == "" {
		u.Status = user.StatusActive
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.EmailVerifiedAt = cloneTime(u.EmailVerifiedAt)

	s.users[u.ID] = u
	s.usersByEmail[key] = u.ID
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	oldKey, newKey := emailKey(original.Email), emailKey(u.Email)
	if oldKey != newKey {
		if owner, taken := s.usersByEmail[newKey]; taken && owner != u.ID {
			return user.User{}, storage.ErrEmailTaken
		}
		delete(s.usersByEmail, oldKey)
		s.usersByEmail[newKey] = u.ID
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.EmailVerifiedAt = cloneTime(u.EmailVerifiedAt)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[emailKey(email)]
	if !ok {
		return user.User{}, fmt.Errorf("user with email %s: %w", email, storage.ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListUsers(_ context.Context, q storage.Query) (storage.Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return storage.Page{}, err
	}

	s.mu.RLock()
	matched := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		if matchesSearch(u, q.Search) && matchesFilters(u, q.Filters) {
			matched = append(matched, cloneUser(u))
		}
	}
	s.mu.RUnlock()

	sortUsers(matched, q.SortBy, q.SortDirection == "desc")

	page := storage.Page{Total: len(matched), Page: q.Page, PerPage: q.PerPage}
	start := q.Offset()
	if start < len(matched) {
		end := start + q.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[start:end]
	}
	if page.Items == nil {
		page.Items = []user.User{}
	}
	return page, nil
}

func (s *Store) CountUsers(_ context.Context, filters map[string][]string) (int, error) {
	q, err := storage.Query{Filters: filters}.Normalize()
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, u := range s.users {
		if matchesFilters(u, q.Filters) {
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	delete(s.users, id)
	delete(s.usersByEmail, emailKey(u.Email))
	return nil
}

// helpers ---------------------------------------------------------------------

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fieldValue(u user.User, field string) string {
	switch field {
	case "id":
		return u.ID
	case "name":
		return u.Name
	case "email":
		return u.Email
	case "status":
		return string(u.Status)
	default:
		return ""
	}
}

func matchesSearch(u user.User, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, field := range storage.SearchableFields {
		if strings.Contains(strings.ToLower(fieldValue(u, field)), needle) {
			return true
		}
	}
	return false
}

func matchesFilters(u user.User, filters map[string][]string) bool {
	for field, values := range filters {
		got := fieldValue(u, field)
		found := false
		for _, v := range values {
			if v == got {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortUsers(users []user.User, by string, desc bool) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if desc {
			a, b = b, a
		}
		switch by {
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case "updated_at":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case "id":
		default:
			if av, bv := fieldValue(a, by), fieldValue(b, by); av != bv {
				return av < bv
			}
		}
		return idLess(a.ID, b.ID)
	})
}

// idLess orders numeric IDs numerically and everything else lexically.
func idLess(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUser(u user.User) user.User {
	u.EmailVerifiedAt = cloneTime(u.EmailVerifiedAt)
	return u
}
