package auth

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now}
	if !s.Expired(now) {
		t.Fatalf("session expiring exactly now must be treated as absent")
	}
	if s.Expired(now.Add(-time.Second)) {
		t.Fatalf("did not expect expiry one second before ExpiresAt")
	}
}

func TestSession_JSONOmitsToken(t *testing.T) {
	b, err := json.Marshal(Session{ID: "secret-token", PrincipalID: "p1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "secret-token") {
		t.Fatalf("session JSON leaked token: %s", b)
	}
}

func TestUser_PrincipalStripsSecret(t *testing.T) {
	u := User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "$2a$10$hash"}
	p := u.Principal()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "$2a$") {
		t.Fatalf("principal JSON leaked hash: %s", b)
	}
	if p.Attributes != nil {
		t.Fatalf("local accounts carry no provider attribute: %+v", p.Attributes)
	}

	g := User{ID: "u2", Email: "g@example.com", Provider: "google"}.Principal()
	if g.Attributes["provider"] != "google" {
		t.Fatalf("expected provider attribute, got %+v", g.Attributes)
	}
}

func TestVerification_Shapes(t *testing.T) {
	results := []Verification{
		Verified{Principal: Principal{ID: "p1"}},
		Rejected{Reason: ReasonInvalidCredentials},
	}
	var verified, rejected int
	for _, r := range results {
		switch r.(type) {
		case Verified:
			verified++
		case Rejected:
			rejected++
		}
	}
	if verified != 1 || rejected != 1 {
		t.Fatalf("verified=%d rejected=%d", verified, rejected)
	}
}

func TestCookieDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       CookieDescriptor
		wantErr bool
	}{
		{"none requires secure", CookieDescriptor{Name: "sid", HTTPOnly: true, SameSite: SameSiteNone}, true},
		{"none with secure", CookieDescriptor{Name: "sid", HTTPOnly: true, Secure: true, SameSite: SameSiteNone}, false},
		{"lax without secure", CookieDescriptor{Name: "sid", HTTPOnly: true, SameSite: SameSiteLax}, false},
		{"strict", CookieDescriptor{Name: "sid", HTTPOnly: true, SameSite: SameSiteStrict}, false},
		{"missing httponly", CookieDescriptor{Name: "sid", SameSite: SameSiteLax}, true},
		{"missing name", CookieDescriptor{HTTPOnly: true, SameSite: SameSiteLax}, true},
		{"unknown samesite", CookieDescriptor{Name: "sid", HTTPOnly: true, SameSite: "Loose"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
