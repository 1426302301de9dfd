package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration matches any *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrStateMismatch is returned when Validate is called without a pending
	// authorization, with the wrong state, or without a code. The caller must
	// restart the authorization flow.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrTokenExchangeFailed is returned when the token endpoint rejects an
	// authorization code exchange.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrInvalidGrant means the provider rejected a refresh token. It will not
	// start working again; the user has to re-authenticate.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrTransientNetworkFailure covers network errors and non-success
	// responses that may succeed on retry.
	ErrTransientNetworkFailure = errors.New("transient network failure")

	// ErrInteractionRequired is returned when no usable token exists and the
	// user has to go through the provider consent screen.
	ErrInteractionRequired = errors.New("user interaction required")

	// ErrNoToken is returned by token sources when nothing is stored.
	ErrNoToken = errors.New("no token available")
)

// InvalidGrantMarker is the OAuth error code that classifies a refresh
// failure as permanent.
const InvalidGrantMarker = "invalid_grant"

// ConfigurationError describes a missing or malformed provider/client setting.
// It is returned at construction time so that it surfaces before any network
// call.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrConfiguration) true for any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a ConfigurationError for field.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// TokenError carries the details of a failed token endpoint call. Err is one
// of the sentinel errors above, so errors.Is works on the whole chain.
type TokenError struct {
	// Op is the grant or operation, e.g. "authorization_code", "refresh_token".
	Op string

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// Code and Description are the OAuth "error" and "error_description"
	// fields from the response body, when present.
	Code        string
	Description string

	Err error
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
		if e.Description != "" {
			b.WriteString(" - ")
			b.WriteString(e.Description)
		}
	}
	return b.String()
}

// Unwrap returns the sentinel for errors.Is inspection.
func (e *TokenError) Unwrap() error {
	return e.Err
}

// errorBody is the RFC 6749 section 5.2 error response.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ParseErrorBody extracts the OAuth error code and description from a token
// endpoint response body. Non-JSON bodies yield empty strings.
func ParseErrorBody(body []byte) (code, description string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", ""
	}
	return eb.Error, eb.ErrorDescription
}

// ClassifyRefreshFailure maps a non-success refresh response to
// ErrInvalidGrant when the body mentions invalid_grant, and to
// ErrTransientNetworkFailure otherwise.
func ClassifyRefreshFailure(statusCode int, body []byte) *TokenError {
	code, desc := ParseErrorBody(body)
	sentinel := ErrTransientNetworkFailure
	if code == InvalidGrantMarker || strings.Contains(string(body), InvalidGrantMarker) {
		sentinel = ErrInvalidGrant
	}
	return &TokenError{
		Op:          "refresh_token",
		StatusCode:  statusCode,
		Code:        code,
		Description: desc,
		Err:         sentinel,
	}
}

// IsInvalidGrant reports whether err is a permanent refresh failure.
func IsInvalidGrant(err error) bool {
	return errors.Is(err, ErrInvalidGrant)
}
