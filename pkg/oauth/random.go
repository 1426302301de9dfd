package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// alphanumeric is the alphabet used for state and PKCE verifier strings.
// It is a subset of the RFC 7636 unreserved characters.
const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxUnbiasedByte is the largest multiple of len(alphanumeric) that fits in a
// byte (256 - 256%62 = 248). Bytes at or above it are rejected so that every
// character is equally likely.
const maxUnbiasedByte = 256 - (256 % len(alphanumeric))

// GenerateRandomString returns a cryptographically random alphanumeric string
// of the given length.
// Bytes at or above maxUnbiasedByte are rejected and redrawn.
func GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	result := make([]byte, 0, length)
	buf := make([]byte, length)

	for len(result) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if len(result) == length {
				break
			}
			if int(b) < maxUnbiasedByte {
				result = append(result, alphanumeric[int(b)%len(alphanumeric)])
			}
		}
	}

	return string(result), nil
}

// SHA256 returns the SHA-256 digest of input.
func SHA256(input string) [32]byte {
	return sha256.Sum256([]byte(input))
}

// Base64URLEncode encodes data as base64url without padding
// ('+' becomes '-', '/' becomes '_', '=' is stripped).
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
