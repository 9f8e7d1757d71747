package users

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/castellan/castellan/internal/auth"
)

// RepositoryPort defines data access methods for user administration.
type RepositoryPort interface {
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	GetByID(ctx context.Context, id int64) (*auth.User, error)
	Create(ctx context.Context, user *auth.User) error
	Update(ctx context.Context, user *auth.User, observedAt time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]auth.User, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

// Service handles administrative user management. Accounts created here
// are active immediately and never carry a pending flow token.
type Service struct {
	repo   RepositoryPort
	hasher auth.Hasher
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, hasher auth.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher, now: time.Now}
}

// ListResult pairs one page of users with the total match count.
type ListResult struct {
	Users []auth.User
	Total int64
}

// List returns a filtered page of users plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	var result ListResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.repo.List(ctx, filter)
		if err != nil {
			return err
		}
		result.Users = items
		return nil
	})
	g.Go(func() error {
		total, err := s.repo.Count(ctx, filter)
		if err != nil {
			return err
		}
		result.Total = total
		return nil
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}
	return result, nil
}

// Get fetches a single user.
func (s *Service) Get(ctx context.Context, id int64) (*auth.User, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateInput carries admin user-creation data.
type CreateInput struct {
	Email    string
	Password string
	Roles    []auth.Role
}

// Create provisions an active account with the given roles.
func (s *Service) Create(ctx context.Context, in CreateInput) (*auth.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	roles := in.Roles
	if len(roles) == 0 {
		roles = []auth.Role{auth.RoleUser}
	}
	now := s.now().UTC()
	user := &auth.User{
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        roles,
		Status:       auth.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateInput carries admin user-update data. Empty fields keep the
// stored value.
type UpdateInput struct {
	Email string
	Roles []auth.Role
}

// Update rewrites the mutable attributes of a user.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*auth.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != "" {
		user.Email = in.Email
	}
	if len(in.Roles) > 0 {
		user.Roles = in.Roles
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ChangePassword replaces the stored password hash.
func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.save(ctx, user)
}

// Activate transitions the account to the active status.
func (s *Service) Activate(ctx context.Context, id int64) (*auth.User, error) {
	return s.setStatus(ctx, id, auth.StatusActive)
}

// Block transitions the account to the blocked status.
func (s *Service) Block(ctx context.Context, id int64) (*auth.User, error) {
	return s.setStatus(ctx, id, auth.StatusBlocked)
}

func (s *Service) setStatus(ctx context.Context, id int64, status auth.Status) (*auth.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Status = status
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) save(ctx context.Context, user *auth.User) error {
	observed := user.UpdatedAt
	user.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, user, observed)
}
