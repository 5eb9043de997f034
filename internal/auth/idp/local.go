package idp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
	"github.com/fernwehlabs/lifelog/internal/auth/store"
	"github.com/fernwehlabs/lifelog/pkg/cryptox"
	"github.com/fernwehlabs/lifelog/pkg/idx"
)

// LocalDirectory is the built-in identity backend: users live in our own
// store and passwords are argon2id hashes.
type LocalDirectory struct {
	store  store.Store
	logger *slog.Logger
}

var _ Directory = (*LocalDirectory)(nil)

func NewLocalDirectory(s store.Store, logger *slog.Logger) *LocalDirectory {
	return &LocalDirectory{
		store:  s,
		logger: logger.With("component", "idp.local"),
	}
}

func (d *LocalDirectory) Register(ctx context.Context, reg Registration) (domain.User, error) {
	hash, err := cryptox.HashPassword(reg.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        strings.TrimSpace(reg.Email),
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique email index is the arbiter for concurrent registrations of
	// the same address; we surface the loser's constraint error as ErrEmailTaken.
	if err := d.store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	d.logger.Info("identity registered", "user_id", u.ID)
	return u, nil
}

func (d *LocalDirectory) Lookup(ctx context.Context, email string) (domain.User, error) {
	u, err := d.store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (d *LocalDirectory) CheckPassword(ctx context.Context, user domain.User, password string) error {
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}

func (d *LocalDirectory) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return d.store.Users().UpdatePasswordHash(ctx, userID, hash)
}
