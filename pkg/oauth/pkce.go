package oauth

import (
	"fmt"
)

const (
	// CodeVerifierLength is the length of generated PKCE code verifiers.
	// RFC 7636 allows 43 to 128 characters.
	CodeVerifierLength = 64

	// StateLength is the length of generated OAuth state parameters.
	StateLength = 16

	// CodeChallengeMethodS256 is the only challenge method we send.
	// "plain" is never used.
	CodeChallengeMethodS256 = "S256"
)

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) pair.
type PKCEChallenge struct {
	// CodeVerifier is kept by the client and only sent to the token endpoint.
	CodeVerifier string

	// CodeChallenge is the S256 hash of the verifier, sent in the
	// authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// S256Challenge computes BASE64URL(SHA256(verifier)).
func S256Challenge(verifier string) string {
	hash := SHA256(verifier)
	return Base64URLEncode(hash[:])
}

// GeneratePKCE generates a new PKCE code verifier and its S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, err := GenerateRandomString(CodeVerifierLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       S256Challenge(verifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}

// GenerateState generates a random state parameter for OAuth.
// The state is round-tripped through the provider redirect and compared on
// return to prevent CSRF.
func GenerateState() (string, error) {
	state, err := GenerateRandomString(StateLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return state, nil
}
