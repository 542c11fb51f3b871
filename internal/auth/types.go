// Package auth provides service-token authentication for the API: signed
// JWT bearer tokens for interactive callers and bcrypt-hashed static API
// keys for machine clients.
package auth

// ServiceClaims represents the JWT claims for a service caller
type ServiceClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"` // "reader" or "operator"
}

// Roles
const (
	RoleReader   = "reader"   // may query signals and runs
	RoleOperator = "operator" // may also trigger cluster runs
)

// AuthError is a coded authentication error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden    = AuthError{Code: "FORBIDDEN", Message: "insufficient role"}
)
