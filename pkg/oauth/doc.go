// Package oauth provides the shared OAuth 2.0 building blocks used by the
// tokenwarden auth client and CLI.
//
// This package holds everything that is independent of a particular provider
// or storage backend:
//
//   - Random strings, SHA-256 and base64url helpers for PKCE (RFC 7636)
//   - PKCE verifier/challenge and state generation
//   - TokenRecord, the persisted credential, and TokenResponse, the token
//     endpoint wire format
//   - The error taxonomy shared by the auth client and its callers
//
// # Usage
//
//	pkce, err := oauth.GeneratePKCE()
//	state, err := oauth.GenerateState()
//
//	record := oauth.NewTokenRecord(resp, time.Now())
//	if record.DueForRefresh(time.Now(), oauth.RefreshBuffer) {
//	    // refresh
//	}
//
// Callers distinguish "retry later" from "restart the flow" with errors.Is:
//
//	if errors.Is(err, oauth.ErrInvalidGrant) {
//	    // the refresh token is dead, re-authenticate interactively
//	}
package oauth
