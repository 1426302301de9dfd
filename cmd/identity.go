package cmd

import (
	"github.com/golang-jwt/jwt/v5"
)

// idTokenIdentity returns the email, or failing that the subject, from an
// ID token. The signature is not checked; the value is only displayed.
func idTokenIdentity(raw string) string {
	if raw == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	subject, _ := claims.GetSubject()
	return subject
}
