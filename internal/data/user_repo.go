package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	domainauth "github.com/target/sessiond/internal/domain/auth"
	apperrors "github.com/target/sessiond/internal/errors"
)

const userColumns = `id, name, email, password_hash, provider, subject, created_at`

// UserRepo persists accounts in PostgreSQL. Emails are stored lowercased and
// are unique across local and provider accounts.
type UserRepo struct {
	DB    *sql.DB
	Clock TimeProvider
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB, clock TimeProvider) *UserRepo {
	if clock == nil {
		clock = &RealTimeProvider{}
	}
	return &UserRepo{DB: db, Clock: clock}
}

type userRow struct {
	name, email, hash, provider, subject string
}

// Create inserts a local-password account.
func (r *UserRepo) Create(ctx context.Context, in domainauth.NewUser) (domainauth.User, error) {
	return r.insert(ctx, userRow{
		name:  strings.TrimSpace(in.Name),
		email: normalizeEmail(in.Email),
		hash:  in.PasswordHash,
	})
}

// FindByEmail looks up an account by case-insensitive email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domainauth.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email))
}

// FindByID looks up an account by primary key.
func (r *UserRepo) FindByID(ctx context.Context, id string) (domainauth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domainauth.User{}, domainauth.ErrUserNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindOrCreateByIdentity returns the account owning the identity's email,
// creating a provider account on first sight. A concurrent first login for
// the same email resolves to the row that won the insert.
func (r *UserRepo) FindOrCreateByIdentity(ctx context.Context, id domainauth.Identity) (domainauth.User, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return domainauth.User{}, apperrors.ValidationField("email", "identity has no email")
	}

	u, err := r.FindByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domainauth.ErrUserNotFound) {
		return domainauth.User{}, err
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	u, err = r.insert(ctx, userRow{name: name, email: email, provider: id.Provider, subject: id.Subject})
	if errors.Is(err, domainauth.ErrEmailTaken) {
		return r.FindByEmail(ctx, email)
	}
	return u, err
}

func (r *UserRepo) insert(ctx context.Context, row userRow) (domainauth.User, error) {
	u := domainauth.User{
		ID:           uuid.NewString(),
		Name:         row.name,
		Email:        row.email,
		PasswordHash: row.hash,
		Provider:     row.provider,
		Subject:      row.subject,
	}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, provider, subject, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Provider, u.Subject, r.Clock.Now(),
	).Scan(&u.CreatedAt)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return domainauth.User{}, domainauth.ErrEmailTaken
		}
		return domainauth.User{}, fmt.Errorf("insert user: %w", mapped)
	}
	return u, nil
}

func (r *UserRepo) findOne(ctx context.Context, query string, arg any) (domainauth.User, error) {
	var u domainauth.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Provider, &u.Subject, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domainauth.User{}, domainauth.ErrUserNotFound
	}
	if err != nil {
		return domainauth.User{}, fmt.Errorf("query user: %w", apperrors.MapDBError(err))
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
