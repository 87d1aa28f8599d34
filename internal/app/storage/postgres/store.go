package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	"github.com/R3E-Network/action_layer/internal/app/storage"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, status, email_verified_at, created_at, updated_at`

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = user.StatusActive
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO app_users (`+userColumns+`)
		VALUES (:id, :name, :email, :password_hash, :status, :email_verified_at, :created_at, :updated_at)
	`, u)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE app_users
		SET name = :name, email = :email, password_hash = :password_hash, status = :status,
		    email_verified_at = :email_verified_at, updated_at = :updated_at
		WHERE id = :id
	`, u)
	if err != nil {
		return user.User{}, translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM app_users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM app_users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user with email %s: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, q storage.Query) (storage.Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return storage.Page{}, err
	}

	where, args := whereClause(q.Search, q.Filters)

	countQuery, countArgs, err := sqlx.In(`SELECT COUNT(*) FROM app_users`+where, args...)
	if err != nil {
		return storage.Page{}, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(countQuery), countArgs...); err != nil {
		return storage.Page{}, err
	}

	direction := strings.ToUpper(q.SortDirection)
	listQuery, listArgs, err := sqlx.In(
		`SELECT `+userColumns+` FROM app_users`+where+
			fmt.Sprintf(` ORDER BY %s %s, id %s LIMIT ? OFFSET ?`, q.SortBy, direction, direction),
		append(args, q.PerPage, q.Offset())...,
	)
	if err != nil {
		return storage.Page{}, err
	}
	items := []user.User{}
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(listQuery), listArgs...); err != nil {
		return storage.Page{}, err
	}

	return storage.Page{Items: items, Total: total, Page: q.Page, PerPage: q.PerPage}, nil
}

func (s *Store) CountUsers(ctx context.Context, filters map[string][]string) (int, error) {
	q, err := storage.Query{Filters: filters}.Normalize()
	if err != nil {
		return 0, err
	}
	where, args := whereClause("", q.Filters)
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM app_users`+where, args...)
	if err != nil {
		return 0, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(query), args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// whereClause builds a WHERE clause with '?' bind vars. Field names come from
// a normalized Query and are safe to interpolate.
func whereClause(search string, filters map[string][]string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if search != "" {
		like := "%" + search + "%"
		parts := make([]string, 0, len(storage.SearchableFields))
		for _, field := range storage.SearchableFields {
			parts = append(parts, field+" ILIKE ?")
			args = append(args, like)
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}

	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		conds = append(conds, field+" IN (?)")
		args = append(args, filters[field])
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrEmailTaken
	}
	return err
}
