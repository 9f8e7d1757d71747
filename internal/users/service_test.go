package users

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/castellan/castellan/internal/auth"
	"github.com/castellan/castellan/internal/platform/httpx"
	_ "github.com/castellan/castellan/testing"
)

type memoryRepo struct {
	byID   map[int64]*auth.User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[int64]*auth.User)}
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, user := range r.byID {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (*auth.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	clone := *user
	return &clone, nil
}

func (r *memoryRepo) Create(_ context.Context, user *auth.User) error {
	for _, existing := range r.byID {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
	}
	r.nextID++
	user.ID = r.nextID
	clone := *user
	r.byID[user.ID] = &clone
	return nil
}

func (r *memoryRepo) Update(_ context.Context, user *auth.User, observedAt time.Time) error {
	existing, ok := r.byID[user.ID]
	if !ok {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	if !existing.UpdatedAt.Equal(observedAt) {
		return fmt.Errorf("%w: user was modified concurrently", httpx.ErrDuplicate)
	}
	clone := *user
	r.byID[user.ID] = &clone
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

func (r *memoryRepo) matches(user *auth.User, filter ListFilter) bool {
	if filter.Email != "" && !strings.Contains(user.Email, filter.Email) {
		return false
	}
	if filter.Status != "" && string(user.Status) != filter.Status {
		return false
	}
	if filter.Role != "" {
		found := false
		for _, role := range user.Roles {
			if string(role) == filter.Role {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]auth.User, error) {
	var all []auth.User
	for id := r.nextID; id >= 1; id-- {
		user, ok := r.byID[id]
		if !ok || !r.matches(user, filter) {
			continue
		}
		all = append(all, *user)
	}
	offset := filter.Offset()
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryRepo) Count(_ context.Context, filter ListFilter) (int64, error) {
	var total int64
	for _, user := range r.byID {
		if r.matches(user, filter) {
			total++
		}
	}
	return total, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, auth.NewHasher(bcrypt.MinCost)), repo
}

func TestCreateProvisionsActiveUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Email: "admin@x.com", Password: "pw12345678", Roles: []auth.Role{auth.RoleAdmin}})
	require.NoError(t, err)
	require.Equal(t, auth.StatusActive, user.Status)
	require.Equal(t, []auth.Role{auth.RoleAdmin}, user.Roles)
	require.Nil(t, user.Token)

	// Default role when none given.
	other, err := svc.Create(ctx, CreateInput{Email: "plain@x.com", Password: "pw12345678"})
	require.NoError(t, err)
	require.Equal(t, []auth.Role{auth.RoleUser}, other.Roles)
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Email: "a@x.com", Password: "pw12345678"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Email: "a@x.com", Password: "pw12345678"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateUser(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Email: "a@x.com", Password: "pw12345678"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, user.ID, UpdateInput{
		Email: "b@x.com",
		Roles: []auth.Role{auth.RoleAdmin, auth.RoleUser},
	})
	require.NoError(t, err)
	require.Equal(t, "b@x.com", updated.Email)
	require.Equal(t, auth.RoleAdmin, updated.PrimaryRole())

	persisted, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "b@x.com", persisted.Email)
}

func TestChangePassword(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	hasher := auth.NewHasher(bcrypt.MinCost)

	user, err := svc.Create(ctx, CreateInput{Email: "a@x.com", Password: "pw12345678"})
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "new-password-1"))

	persisted, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, hasher.Verify("new-password-1", persisted.PasswordHash))
	require.False(t, hasher.Verify("pw12345678", persisted.PasswordHash))
}

func TestActivateAndBlock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Email: "a@x.com", Password: "pw12345678"})
	require.NoError(t, err)

	blocked, err := svc.Block(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, auth.StatusBlocked, blocked.Status)

	activated, err := svc.Activate(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, auth.StatusActive, activated.Status)
}

func TestDeleteUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Email: "a@x.com", Password: "pw12345678"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID))
	require.ErrorIs(t, svc.Delete(ctx, user.ID), httpx.ErrNotFound)

	_, err = svc.Get(ctx, user.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestListFiltersAndPagination(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < PageSize+5; i++ {
		email := fmt.Sprintf("user%02d@x.com", i)
		_, err := svc.Create(ctx, CreateInput{Email: email, Password: "pw12345678"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateInput{Email: "boss@corp.com", Password: "pw12345678", Roles: []auth.Role{auth.RoleAdmin}})
	require.NoError(t, err)

	page1, err := svc.List(ctx, ListFilter{Page: 1})
	require.NoError(t, err)
	require.Len(t, page1.Users, PageSize)
	require.Equal(t, int64(PageSize+6), page1.Total)

	page2, err := svc.List(ctx, ListFilter{Page: 2})
	require.NoError(t, err)
	require.Len(t, page2.Users, 6)

	admins, err := svc.List(ctx, ListFilter{Role: string(auth.RoleAdmin)})
	require.NoError(t, err)
	require.Len(t, admins.Users, 1)
	require.Equal(t, "boss@corp.com", admins.Users[0].Email)

	corp, err := svc.List(ctx, ListFilter{Email: "corp"})
	require.NoError(t, err)
	require.Equal(t, int64(1), corp.Total)
}

func TestListFilterOffset(t *testing.T) {
	require.Equal(t, 0, ListFilter{}.Offset())
	require.Equal(t, 0, ListFilter{Page: 1}.Offset())
	require.Equal(t, PageSize, ListFilter{Page: 2}.Offset())
	require.Equal(t, 4*PageSize, ListFilter{Page: 5}.Offset())
}
