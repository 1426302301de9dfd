package cmd

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenwarden/pkg/oauth"
)

func unsignedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}

func TestIDTokenIdentity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "garbage", raw: "not-a-jwt", want: ""},
		{name: "email preferred", raw: unsignedIDToken(t, jwt.MapClaims{"sub": "u-1", "email": "me@example.com"}), want: "me@example.com"},
		{name: "subject fallback", raw: unsignedIDToken(t, jwt.MapClaims{"sub": "u-1"}), want: "u-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idTokenIdentity(tt.raw))
		})
	}
}

func TestDescribeExpiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "unknown", describeExpiry(&oauth.TokenRecord{}, now))
	assert.Equal(t, "in 5m", describeExpiry(&oauth.TokenRecord{ExpiresAt: now.Add(5 * time.Minute).UnixMilli()}, now))
	assert.Contains(t, describeExpiry(&oauth.TokenRecord{ExpiresAt: now.Add(-90 * time.Second).UnixMilli()}, now), "expired 1m ago")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 42 * time.Second, want: "42s"},
		{in: 5 * time.Minute, want: "5m"},
		{in: 2*time.Hour + 30*time.Minute, want: "2h30m"},
		{in: 50 * time.Hour, want: "2d2h"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}
