package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
	"tally/internal/storage"
)

const minPasswordLen = 8

// AccountService registers users and checks their passwords.
type AccountService struct {
	storage *storage.SQLiteRepository
	cost    int
}

func NewAccountService(store *storage.SQLiteRepository) *AccountService {
	return &AccountService{storage: store, cost: bcrypt.DefaultCost}
}

func (s *AccountService) Register(ctx context.Context, email, name, password string) (core.User, error) {
	email = core.NormalizeEmail(email)
	if !core.ValidEmail(email) {
		return core.User{}, core.ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return core.User{}, core.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.storage.CreateUser(ctx, core.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
	})
	if err != nil {
		return core.User{}, err
	}
	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return u, nil
}

// Authenticate returns the user for valid credentials. Unknown emails and
// wrong passwords produce the same error.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Failed login attempt", "user_id", u.ID)
		return core.User{}, core.ErrInvalidCredentials
	}
	return u, nil
}

func (s *AccountService) GetUser(ctx context.Context, id int64) (core.User, error) {
	return s.storage.GetUser(ctx, id)
}
