package origin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Evaluate(t *testing.T) {
	p, err := NewPolicy([]string{"https://client.example.com", "http://localhost:5173"})
	require.NoError(t, err)

	tests := []struct {
		name        string
		origin      string
		wantAllowed bool
		wantReflect string
	}{
		{"absent origin is allowed without headers", "", true, ""},
		{"listed origin is reflected exactly", "https://client.example.com", true, "https://client.example.com"},
		{"default port is equivalent", "https://client.example.com:443", true, "https://client.example.com:443"},
		{"host case is ignored", "https://CLIENT.example.com", true, "https://CLIENT.example.com"},
		{"dev port matches", "http://localhost:5173", true, "http://localhost:5173"},
		{"scheme mismatch is denied", "http://client.example.com", false, ""},
		{"other port is denied", "http://localhost:3000", false, ""},
		{"subdomain is denied", "https://evil.client.example.com", false, ""},
		{"suffix trick is denied", "https://client.example.com.evil.test", false, ""},
		{"null origin is denied", "null", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Evaluate(tt.origin)
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.wantReflect, d.Reflect)
			assert.Equal(t, tt.wantReflect != "", d.Credentialed())
		})
	}
}

func TestNewPolicy_RejectsWildcard(t *testing.T) {
	_, err := NewPolicy([]string{"https://*.example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWildcard))

	_, err = NewPolicy([]string{"*"})
	assert.True(t, errors.Is(err, ErrWildcard))
}

func TestNewPolicy_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{"client.example.com", "ftp://example.com", "https://example.com/app", "https://u:p@example.com"} {
		_, err := NewPolicy([]string{raw})
		assert.Error(t, err, raw)
	}
}

func TestPolicy_Origins(t *testing.T) {
	p, err := NewPolicy([]string{" https://b.example.com/ ", "", "HTTPS://A.example.com:443"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, p.Origins())
}

func TestPolicy_NilDeniesEverything(t *testing.T) {
	var p *Policy
	assert.False(t, p.Allows("https://client.example.com"))
	assert.Nil(t, p.Origins())
}
