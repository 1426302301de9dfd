// Package auth implements the OAuth 2.0 authorization code flow with PKCE
// for a single provider.
//
// A Client moves through three states:
//
//	NoCredential --CreateAuthURL--> PendingAuthorization --Validate--> Authenticated
//	     ^                                                                  |
//	     +---------- Deauthenticate / invalid_grant on refresh -------------+
//
// The pending session (state + PKCE verifier) lives only in memory. The
// credential itself is a TokenRecord persisted through a storage.Adapter
// under "oauth2.<provider>". Expiry is evaluated lazily on every read: a
// token within RefreshBuffer of its expiry is refreshed before being handed
// out, and concurrent readers share one refresh per storage key.
//
// Provider differences are isolated behind the Exchanger interface. Public
// clients use a plain form-POST implementation; confidential clients use
// golang.org/x/oauth2.
//
// # Concurrency
//
// All methods are safe for concurrent use. Only the most recently created
// session is honored by Validate. Validate takes the session out of the
// client before calling the token endpoint, so a CreateAuthURL that races
// with an in-flight Validate starts a new session that the in-flight call
// neither uses nor clears.
//
// # Error Handling
//
// Read-path methods (GetAuthToken, IsAuthenticated, TokenSource) degrade
// storage and network failures to "no token". Write-path methods (Validate,
// Authenticate) return the errors defined in pkg/oauth so callers can tell
// "retry later" from "restart the flow".
package auth
