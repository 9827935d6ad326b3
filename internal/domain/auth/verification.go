package auth

// Credential is the input to a CredentialVerifier. The set of credential
// shapes is closed to this package.
type Credential interface {
	credential()
}

// PasswordCredential is an email/secret pair submitted to the login endpoint.
type PasswordCredential struct {
	Email  string
	Secret string
}

// ProviderCredential is the opaque callback artifact returned by an identity
// provider together with the state/nonce pair bound to the browser.
type ProviderCredential struct {
	Code          string
	State         string
	ExpectedState string
	Nonce         string
}

func (PasswordCredential) credential() {}
func (ProviderCredential) credential() {}

// RejectReason is a machine-readable explanation for a rejected credential.
type RejectReason string

const (
	ReasonInvalidCredentials RejectReason = "invalid_credentials"
	ReasonProviderRejected   RejectReason = "provider_rejected"
	ReasonNoEmail            RejectReason = "no_email"
	ReasonEmailUnverified    RejectReason = "email_unverified"
)

// Verification is the outcome of verifying a credential: exactly one of
// Verified or Rejected.
type Verification interface {
	verification()
}

// Verified carries the principal a credential proved.
type Verified struct {
	Principal Principal
}

// Rejected carries the reason a credential was refused.
type Rejected struct {
	Reason RejectReason
}

func (Verified) verification() {}
func (Rejected) verification() {}
