package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan/castellan/internal/auth"
	"github.com/castellan/castellan/internal/platform/httpx"
)

const uniqueViolation = "23505"

const userColumns = "id, email, password_hash, roles, status, token, created_at, updated_at"

// Repository provides PostgreSQL backed persistence for user accounts.
// It implements auth.UserStore for the authentication flows and carries
// the additional queries used by the admin surface.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ auth.UserStore = (*Repository)(nil)

// FindByEmail fetches a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// Create inserts a new user. The unique index on email surfaces as
// httpx.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, user *auth.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, roles, status, token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		user.Email, user.PasswordHash, rolesToText(user.Roles), string(user.Status),
		user.Token, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
		return fmt.Errorf("users: create: %w", err)
	}
	return nil
}

// Update writes the full record conditionally on the previously observed
// updated_at, so concurrent check-then-set flows cannot both win.
func (r *Repository) Update(ctx context.Context, user *auth.User, observedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET email = $2, password_hash = $3, roles = $4, status = $5, token = $6, updated_at = $7
		 WHERE id = $1 AND updated_at = $8`,
		user.ID, user.Email, user.PasswordHash, rolesToText(user.Roles), string(user.Status),
		user.Token, user.UpdatedAt, observedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
		return fmt.Errorf("users: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user was modified concurrently", httpx.ErrDuplicate)
	}
	return nil
}

// Delete removes a user row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	return nil
}

// List returns one page of users matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]auth.User, error) {
	where, args := filterClause(filter)
	query := "SELECT " + userColumns + " FROM users" + where +
		" ORDER BY id DESC LIMIT " + strconv.Itoa(PageSize) +
		" OFFSET " + strconv.Itoa(filter.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

// Count returns the total number of users matching the filter.
func (r *Repository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	where, args := filterClause(filter)
	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("users: count: %w", err)
	}
	return total, nil
}

func filterClause(filter ListFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Email != "" {
		args = append(args, "%"+filter.Email+"%")
		conds = append(conds, fmt.Sprintf("email ILIKE $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, fmt.Sprintf("$%d = ANY(roles)", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user   auth.User
		roles  []string
		status string
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &roles, &status,
		&user.Token, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	user.Roles = make([]auth.Role, len(roles))
	for i, role := range roles {
		user.Roles[i] = auth.Role(role)
	}
	user.Status = auth.Status(status)
	return &user, nil
}

func rolesToText(roles []auth.Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
