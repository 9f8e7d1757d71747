package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan/castellan/internal/platform/db"
	"github.com/castellan/castellan/internal/platform/httpx"
)

// Service is the permission registry. Assignment and removal are plain
// associative operations; authorization gating happens elsewhere.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// GetPermission fetches a permission by ID.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description FROM permissions WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("%w: permission not found", httpx.ErrNotFound)
		}
		return Permission{}, fmt.Errorf("rbac: get permission: %w", err)
	}
	return p, nil
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("rbac: list permissions: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	return out, nil
}

// AssignToUser attaches a permission to a user. Re-assigning is a no-op.
// Existence of both sides is checked in the same transaction so a missing
// user or permission surfaces as not-found rather than a constraint error.
func (s *Service) AssignToUser(ctx context.Context, userID, permissionID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM permissions WHERE id = $1)`, permissionID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("rbac: assign permission: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: permission not found", httpx.ErrNotFound)
		}
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("rbac: assign permission: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_permissions (user_id, permission_id)
			 VALUES ($1, $2)
			 ON CONFLICT (user_id, permission_id) DO NOTHING`,
			userID, permissionID,
		); err != nil {
			return fmt.Errorf("rbac: assign permission: %w", err)
		}
		return nil
	})
}

// RemoveFromUser detaches a permission from a user.
func (s *Service) RemoveFromUser(ctx context.Context, userID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`,
		userID, permissionID,
	)
	if err != nil {
		return fmt.Errorf("rbac: remove permission: %w", err)
	}
	return nil
}

// UserPermissions returns the permission names granted to a user.
func (s *Service) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.name
		 FROM permissions p
		 JOIN user_permissions up ON up.permission_id = p.id
		 WHERE up.user_id = $1
		 ORDER BY p.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("rbac: user permissions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("rbac: user permissions: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: user permissions: %w", err)
	}
	return out, nil
}
