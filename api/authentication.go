package api

import "strings"

// Authentication decides whether an API connection may issue commands.
type Authentication interface {
	// Authenticate reports whether token grants access.
	Authenticate(token string) bool
}

// AuthenticationFunc adapts a function to Authentication.
type AuthenticationFunc func(token string) bool

// Authenticate ...
func (f AuthenticationFunc) Authenticate(token string) bool {
	return f(token)
}

// SecretBasedAuthentication grants access to connections presenting a shared
// secret, compared case-insensitively.
type SecretBasedAuthentication struct {
	secret string
}

// NewSecretBasedAuthentication ...
func NewSecretBasedAuthentication(secret string) *SecretBasedAuthentication {
	return &SecretBasedAuthentication{secret: secret}
}

// Authenticate ...
func (authentication *SecretBasedAuthentication) Authenticate(token string) bool {
	return strings.EqualFold(authentication.secret, token)
}
