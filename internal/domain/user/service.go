package user

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/google/uuid"
)

// Service handles registration and credential checks
type Service struct {
	store  Store
	hasher *auth.Hasher
}

func NewService(store Store, hasher *auth.Hasher) *Service {
	return &Service{store: store, hasher: hasher}
}

// Register creates a new customer
func (s *Service) Register(ctx context.Context, email, password, name string) (*User, error) {
	return s.register(ctx, email, password, name, auth.RoleCustomer)
}

// RegisterAdmin creates a new admin user
func (s *Service) RegisterAdmin(ctx context.Context, email, password, name string) (*User, error) {
	return s.register(ctx, email, password, name, auth.RoleAdmin)
}

func (s *Service) register(ctx context.Context, email, password, name, role string) (*User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidEmail, "A valid email is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidName, "Name is required")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, apperr.Wrap(apperr.KindValidation, err, "Password must be at least 8 characters")
		}
		return nil, apperr.Internal(err, "hash password")
	}

	now := time.Now().UTC()
	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Wrap(apperr.KindConflict, err, "Email already registered")
		}
		return nil, apperr.Internal(err, "create user")
	}

	log.Printf("[User] Registered %s (%s)", u.Email, u.Role)
	return u, nil
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.KindUnauthorized, ErrInvalidCredentials, "Invalid email or password")
		}
		return nil, apperr.Internal(err, "load user")
	}
	if !s.hasher.Check(password, u.PasswordHash) {
		return nil, apperr.Wrap(apperr.KindUnauthorized, ErrInvalidCredentials, "Invalid email or password")
	}
	if !u.IsActive {
		return nil, apperr.Wrap(apperr.KindForbidden, ErrUserDeactivated, "Account is deactivated")
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "User not found")
		}
		return nil, apperr.Internal(err, "load user")
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is
// already registered. It is safe to call on every start.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	_, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if _, err := s.RegisterAdmin(ctx, email, password, "Administrator"); err != nil && !apperr.Is(err, apperr.KindConflict) {
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
