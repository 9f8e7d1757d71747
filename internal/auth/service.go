package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castellan/castellan/internal/platform/httpx"
)

// Flow errors surfaced to the HTTP boundary for status-code mapping.
// Unknown email and wrong password deliberately collapse into the same
// ErrBadCredentials value so callers cannot enumerate accounts.
var (
	ErrBadCredentials    = fmt.Errorf("%w: mistaken login or password", httpx.ErrNotFound)
	ErrEmailNotConfirmed = fmt.Errorf("%w: email not confirmed", httpx.ErrForbidden)
	ErrInsufficientRole  = fmt.Errorf("%w: admin role required", httpx.ErrForbidden)
	ErrEmailTaken        = fmt.Errorf("%w: user with this email already exists", httpx.ErrDuplicate)
	ErrNoPendingToken    = fmt.Errorf("%w: user has no pending token", httpx.ErrNotFound)
	ErrTokenMismatch     = fmt.Errorf("%w: missing data", httpx.ErrValidation)
	ErrTokenExpired      = fmt.Errorf("%w: token time is over", httpx.ErrExpired)
	ErrResetThrottled    = fmt.Errorf("%w: password changed too often", httpx.ErrRateLimited)
)

// Service orchestrates login, registration, registration confirmation and
// password reset. All collaborators are passed at construction.
type Service struct {
	store    UserStore
	tokens   *TokenFactory
	hasher   Hasher
	issuer   *Issuer
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(store UserStore, tokens *TokenFactory, hasher Hasher, issuer *Issuer, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// LoginInput carries login credentials. Admin marks an admin-context
// login, which additionally requires an admin primary role.
type LoginInput struct {
	Email    string
	Password string
	Admin    bool
}

// Login verifies credentials and returns a signed session credential.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, error) {
	user, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		return "", ErrBadCredentials
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return "", ErrBadCredentials
	}
	if user.Status != StatusActive {
		return "", ErrEmailNotConfirmed
	}
	if in.Admin && !user.IsAdmin() {
		return "", ErrInsufficientRole
	}
	return s.issuer.Issue(user)
}

// RegisterInput carries self-service registration data.
type RegisterInput struct {
	Email    string
	Password string
}

// Register creates a NEW-status account with a pending confirmation token
// and emails the raw token value. Only the serialized token is persisted.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	}

	flow, err := s.tokens.Generate()
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeToken(flow)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        []Role{RoleUser},
		Status:       StatusNew,
		Token:        &encoded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.dispatch("confirmation", user.Email, func() error {
		return s.notifier.SendConfirmation(ctx, user.Email, flow.Value)
	})
	return user, nil
}

// ConfirmInput carries the registration confirmation payload.
type ConfirmInput struct {
	UserID int64
	Token  string
}

// ConfirmRegistration validates the pending token, activates the account,
// clears the token and returns a session credential for the user.
func (s *Service) ConfirmRegistration(ctx context.Context, in ConfirmInput) (string, error) {
	user, err := s.store.GetByID(ctx, in.UserID)
	if err != nil {
		return "", err
	}
	if user.Token == nil {
		return "", ErrNoPendingToken
	}
	stored, err := DecodeToken(*user.Token)
	if err != nil {
		return "", err
	}
	if stored.Value != in.Token {
		return "", ErrTokenMismatch
	}

	now := s.now()
	if stored.Expired(now) {
		return "", ErrTokenExpired
	}

	observed := user.UpdatedAt
	user.Status = StatusActive
	user.Token = nil
	user.UpdatedAt = now.UTC()
	if err := s.store.Update(ctx, user, observed); err != nil {
		return "", err
	}
	return s.issuer.Issue(user)
}

// ForgetInput carries the password-reset request payload.
type ForgetInput struct {
	Email string
}

// ForgetPassword issues a fresh reset token for the account. A new token
// may only be requested once the previous one has expired, which doubles
// as reset-request throttling.
func (s *Service) ForgetPassword(ctx context.Context, in ForgetInput) (*User, error) {
	user, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if user.Token != nil {
		if stored, err := DecodeToken(*user.Token); err == nil && !stored.Expired(now) {
			return nil, ErrResetThrottled
		}
	}

	flow, err := s.tokens.Generate()
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeToken(flow)
	if err != nil {
		return nil, err
	}

	observed := user.UpdatedAt
	user.Token = &encoded
	user.UpdatedAt = now.UTC()
	if err := s.store.Update(ctx, user, observed); err != nil {
		return nil, err
	}

	s.dispatch("password reset", user.Email, func() error {
		return s.notifier.SendPasswordReset(ctx, user.Email, flow.Value)
	})
	return user, nil
}

// dispatch fires a notification without letting delivery failures roll
// back the state transition that was already persisted.
func (s *Service) dispatch(kind, email string, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		s.logger.Warn("notification dispatch failed",
			slog.String("kind", kind),
			slog.String("email", email),
			slog.Any("error", err))
	}
}
