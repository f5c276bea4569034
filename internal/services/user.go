package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/i-gras/apiserver/internal/auth"
	"github.com/i-gras/apiserver/internal/store"
	"github.com/i-gras/apiserver/types"
)

const (
	defaultUserRole   = "user"
	adminRole         = "admin"
	minPasswordLength = 6

	demoUserName     = "Pengguna Demo"
	demoUserEmail    = "demo@igras.app"
	demoUserPassword = "igras123"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates registration, login, and session lookups.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register validates the input, hashes the password with a fresh salt,
// and creates the user with the default role.
func (s *UserService) Register(ctx context.Context, name, email, password string) (types.PublicUser, error) {
	return s.create(ctx, name, email, password, defaultUserRole)
}

func (s *UserService) create(ctx context.Context, name, email, password, role string) (types.PublicUser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.PublicUser{}, ValidationError("name is required")
	}
	if !emailPattern.MatchString(email) {
		return types.PublicUser{}, ValidationError("invalid email format")
	}
	if len(password) < minPasswordLength {
		return types.PublicUser{}, ValidationError("password must be at least 6 characters")
	}

	normalized := NormalizeEmail(email)

	// Friendly pre-check; the unique index on users.email is the
	// authoritative guard against concurrent duplicates.
	if _, err := s.repo.GetByEmail(ctx, normalized); err == nil {
		return types.PublicUser{}, ValidationError("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.PublicUser{}, err
	}

	salt, err := auth.NewSalt()
	if err != nil {
		return types.PublicUser{}, err
	}
	hash, err := auth.HashPassword(password, salt)
	if err != nil {
		return types.PublicUser{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        normalized,
		Role:         role,
		Salt:         salt,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.PublicUser{}, ValidationError("email already registered")
		}
		return types.PublicUser{}, err
	}
	return user.Public(), nil
}

// Authenticate verifies credentials by normalized email. An unknown
// email and a wrong password produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.PublicUser, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.PublicUser{}, ErrInvalidCredentials
		}
		return types.PublicUser{}, err
	}
	if !auth.VerifyPassword(password, user.Salt, user.PasswordHash) {
		return types.PublicUser{}, ErrInvalidCredentials
	}
	return user.Public(), nil
}

// GetByID returns the sanitized user record for session verification.
func (s *UserService) GetByID(ctx context.Context, id int) (types.PublicUser, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.PublicUser{}, err
	}
	return user.Public(), nil
}

// EnsureDemoUser idempotently provisions the fixed demo admin account.
// It runs once at process start, not on the request path. A concurrent
// duplicate insert collapses into the unique index and is not an error.
func (s *UserService) EnsureDemoUser(ctx context.Context) error {
	if _, err := s.repo.GetByEmail(ctx, demoUserEmail); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err := s.create(ctx, demoUserName, demoUserEmail, demoUserPassword, adminRole)
	var vErr ValidationError
	if errors.As(err, &vErr) {
		return nil
	}
	return err
}

// NormalizeEmail canonicalizes an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
