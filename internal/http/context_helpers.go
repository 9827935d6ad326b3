package httpx

import (
	"context"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	"github.com/target/sessiond/internal/domain/origin"
)

// Unexported context key types to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same keys.
type (
	authKey         struct{}
	verificationKey struct{}
	originKey       struct{}
)

// Authenticated is the resolved identity attached to a request.
type Authenticated struct {
	Principal domainauth.Principal
	Session   domainauth.Session
}

// SetAuthInContext returns a child context that carries the resolved identity.
func SetAuthInContext(ctx context.Context, a Authenticated) context.Context {
	return context.WithValue(ctx, authKey{}, a)
}

// AuthFromContext returns the resolved identity and whether one is present.
func AuthFromContext(ctx context.Context) (Authenticated, bool) {
	a, ok := ctx.Value(authKey{}).(Authenticated)
	return a, ok
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (domainauth.Principal, bool) {
	a, ok := AuthFromContext(ctx)
	return a.Principal, ok
}

// SetVerificationInContext attaches a credential verification result.
// A nil verification returns ctx unchanged.
func SetVerificationInContext(ctx context.Context, v domainauth.Verification) context.Context {
	if v == nil {
		return ctx
	}
	return context.WithValue(ctx, verificationKey{}, v)
}

// VerificationFromContext returns the verification attached by VerifyPassword.
func VerificationFromContext(ctx context.Context) (domainauth.Verification, bool) {
	v, ok := ctx.Value(verificationKey{}).(domainauth.Verification)
	return v, ok && v != nil
}

// SetOriginDecision stores the origin gate outcome for downstream handlers.
func SetOriginDecision(ctx context.Context, d origin.Decision) context.Context {
	return context.WithValue(ctx, originKey{}, d)
}

// OriginDecisionFromContext returns the stored decision. Requests that never
// passed the gate are treated as same-origin.
func OriginDecisionFromContext(ctx context.Context) origin.Decision {
	if d, ok := ctx.Value(originKey{}).(origin.Decision); ok {
		return d
	}
	return origin.Decision{Allowed: true}
}
