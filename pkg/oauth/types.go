package oauth

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// RefreshBuffer is how long before expiry a token is treated as due for
// refresh.
const RefreshBuffer = 60 * time.Second

// StorageKeyPrefix prefixes every persisted TokenRecord key. The full key is
// "oauth2.<provider>".
const StorageKeyPrefix = "oauth2"

// StorageKey returns the storage key for a provider's TokenRecord.
func StorageKey(providerName string) string {
	return StorageKeyPrefix + "." + providerName
}

// TokenResponse is the JSON body returned by a token endpoint for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// TokenRecord is the persisted credential for one provider.
//
// SECURITY: records contain live credentials. Never log AccessToken,
// RefreshToken or IDToken values.
type TokenRecord struct {
	// AccessToken is the bearer token used for API calls.
	AccessToken string `json:"access_token"`

	// RefreshToken renews AccessToken without user interaction. A record
	// without one cannot be silently renewed.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the absolute expiry in milliseconds since the Unix epoch.
	// Zero means the provider did not report a lifetime.
	ExpiresAt int64 `json:"expires_at"`

	TokenType string `json:"token_type,omitempty"`
	Scope     string `json:"scope,omitempty"`
	IDToken   string `json:"id_token,omitempty"`
}

// NewTokenRecord builds a record from a token response issued at now.
// ExpiresAt is now + expires_in seconds.
func NewTokenRecord(resp *TokenResponse, now time.Time) *TokenRecord {
	record := &TokenRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
		IDToken:      resp.IDToken,
	}
	if resp.ExpiresIn > 0 {
		record.ExpiresAt = now.UnixMilli() + resp.ExpiresIn*1000
	}
	return record
}

// Expiry returns ExpiresAt as a time.Time, or the zero time if unset.
func (r *TokenRecord) Expiry() time.Time {
	if r.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.ExpiresAt)
}

// DueForRefresh reports whether now is past ExpiresAt minus buffer.
// A record without an expiry is always due, so that a stored refresh token is
// used rather than trusting an access token of unknown lifetime.
func (r *TokenRecord) DueForRefresh(now time.Time, buffer time.Duration) bool {
	if r.ExpiresAt == 0 {
		return true
	}
	return now.UnixMilli() > r.ExpiresAt-buffer.Milliseconds()
}

// Expired reports whether the access token is past its expiry. A record
// without an expiry never reports expired.
func (r *TokenRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixMilli() >= r.ExpiresAt
}

// HasRefreshToken reports whether the record can be renewed.
func (r *TokenRecord) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}

// Scopes returns the granted scopes as a slice.
func (r *TokenRecord) Scopes() []string {
	if r.Scope == "" {
		return nil
	}
	return strings.Fields(r.Scope)
}

// ToOAuth2Token converts the record to an oauth2.Token for use with
// golang.org/x/oauth2 HTTP clients.
func (r *TokenRecord) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		Expiry:       r.Expiry(),
	}

	if r.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": r.IDToken,
		})
	}

	return token
}

// TokenResponseFromOAuth2 converts a token obtained through
// golang.org/x/oauth2 into the wire format used by the auth client.
// ExpiresIn is derived from the token expiry relative to now.
func TokenResponseFromOAuth2(token *oauth2.Token, now time.Time) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
	}

	if token.ExpiresIn > 0 {
		resp.ExpiresIn = token.ExpiresIn
	} else if secs := rawExpiresIn(token.Extra("expires_in")); secs > 0 {
		resp.ExpiresIn = secs
	} else if !token.Expiry.IsZero() {
		if secs := int64(token.Expiry.Sub(now).Seconds()); secs > 0 {
			resp.ExpiresIn = secs
		}
	}

	if scope, ok := token.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}

	return resp
}

// rawExpiresIn reads expires_in from the raw token response, which is a
// float64 for JSON bodies and a string for form-encoded ones.
func rawExpiresIn(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
