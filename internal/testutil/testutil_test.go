package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, "55432", cfg.Port)
		assert.Equal(t, "sessiond", cfg.User)
		assert.Equal(t, "sessiond_test", cfg.DBName)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_PORT", "5432")
		assert.Equal(t, "5432", DefaultTestDBConfig().Port)
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	t.Setenv("TEST_DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss/word", DBName: "n"}

	dsn := cfg.DSN()
	assert.Equal(t, "postgres://u:p%40ss%2Fword@db:5432/n?sslmode=disable", dsn)
	assert.NotContains(t, cfg.Describe(), "p@ss")
	require.Equal(t, "u@db:5432/n", cfg.Describe())
}
