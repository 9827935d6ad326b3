package devseed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mockauth "github.com/target/sessiond/internal/mocks/auth"
)

func TestRun_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	users := mockauth.NewMemoryUserRepo()
	svcs := Services{Users: users, Hasher: mockauth.PlainHasher{}}

	res, err := Run(ctx, svcs, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{"dev@example.com": true, "second@example.com": true}, res)
	assert.Equal(t, 2, users.Len())

	res, err = Run(ctx, svcs, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{"dev@example.com": false, "second@example.com": false}, res)
	assert.Equal(t, 2, users.Len())

	u, err := users.FindByEmail(ctx, "dev@example.com")
	require.NoError(t, err)
	require.NoError(t, mockauth.PlainHasher{}.Compare(u.PasswordHash, "dev-password"))
}

func TestRun_NormalizesEmail(t *testing.T) {
	users := mockauth.NewMemoryUserRepo()
	res, err := Run(context.Background(), Services{Users: users, Hasher: mockauth.PlainHasher{}},
		[]Account{{Name: "Ada", Email: "  Ada@Example.COM ", Password: "pw"}})
	require.NoError(t, err)
	assert.True(t, res["ada@example.com"])
}

func TestRun_Validation(t *testing.T) {
	_, err := Run(context.Background(), Services{}, nil)
	require.Error(t, err)

	_, err = Run(context.Background(), Services{Users: mockauth.NewMemoryUserRepo(), Hasher: mockauth.PlainHasher{}},
		[]Account{{Name: "no password", Email: "x@example.com"}})
	require.Error(t, err)
}
