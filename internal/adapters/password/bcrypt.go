// Package password provides the bcrypt implementation of ports.PasswordHasher.
package password

import (
	"errors"
	"fmt"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes secrets with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, clamped to bcrypt's valid range.
// A zero cost selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return domainauth.ErrPasswordMismatch
	case errors.Is(err, bcrypt.ErrHashTooShort):
		// malformed stored hash is still a mismatch for the caller
		return domainauth.ErrPasswordMismatch
	default:
		return fmt.Errorf("bcrypt compare: %w", err)
	}
}
