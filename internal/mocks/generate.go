// Package mocks provides gomock implementations of the session service ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	users := mocks.NewMockUserRepository(ctrl)
//	users.EXPECT().FindByEmail(gomock.Any(), "a@example.com").Return(user, nil)
package mocks

// Generate mocks for every port consumed by internal/service:
// CredentialVerifier, FlashStore, IdentityProvider, PasswordHasher, SessionStore, UserRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/target/sessiond/internal/ports CredentialVerifier,FlashStore,IdentityProvider,PasswordHasher,SessionStore,UserRepository
