// Package devseed creates local accounts for development environments.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/ports"
)

// Account describes one seeded account.
type Account struct {
	Name     string
	Email    string
	Password string
}

// DefaultAccounts are seeded when none are given.
func DefaultAccounts() []Account {
	return []Account{
		{Name: "Dev User", Email: "dev@example.com", Password: "dev-password"},
		{Name: "Second User", Email: "second@example.com", Password: "dev-password"},
	}
}

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Users  ports.UserRepository
	Hasher ports.PasswordHasher
	Logger *slog.Logger
}

// Result reports what Run did for each account, keyed by email.
type Result map[string]bool

// Run creates every account whose email is not yet registered. Existing
// accounts are left untouched, so Run is safe to repeat.
func Run(ctx context.Context, svcs Services, accounts []Account) (Result, error) {
	if svcs.Users == nil || svcs.Hasher == nil {
		return nil, errors.New("devseed: user repository and hasher are required")
	}
	logger := svcs.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(accounts) == 0 {
		accounts = DefaultAccounts()
	}

	created := Result{}
	for _, a := range accounts {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		if email == "" || a.Password == "" {
			return created, fmt.Errorf("devseed: account %q needs an email and password", a.Name)
		}

		_, err := svcs.Users.FindByEmail(ctx, email)
		if err == nil {
			created[email] = false
			logger.InfoContext(ctx, "dev account already exists", "email", email)
			continue
		}
		if !errors.Is(err, domainauth.ErrUserNotFound) {
			return created, fmt.Errorf("devseed: find %s: %w", email, err)
		}

		hash, err := svcs.Hasher.Hash(a.Password)
		if err != nil {
			return created, fmt.Errorf("devseed: hash password: %w", err)
		}
		if _, err := svcs.Users.Create(ctx, domainauth.NewUser{Name: a.Name, Email: email, PasswordHash: hash}); err != nil {
			if errors.Is(err, domainauth.ErrEmailTaken) {
				created[email] = false
				continue
			}
			return created, fmt.Errorf("devseed: create %s: %w", email, err)
		}
		created[email] = true
		logger.InfoContext(ctx, "seeded dev account", "email", email)
	}
	return created, nil
}
