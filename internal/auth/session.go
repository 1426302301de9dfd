package auth

import (
	"time"

	"github.com/google/uuid"
)

// AuthState is the protocol state of a Client.
type AuthState int

const (
	// StateNoCredential means nothing is stored and no flow is pending.
	StateNoCredential AuthState = iota

	// StatePendingAuthorization means an authorization URL was handed out and
	// Validate has not been called yet.
	StatePendingAuthorization

	// StateAuthenticated means a credential is stored. It may be stale; that
	// is resolved on the next read.
	StateAuthenticated
)

// String returns the string representation of the auth state.
func (s AuthState) String() string {
	switch s {
	case StateNoCredential:
		return "no_credential"
	case StatePendingAuthorization:
		return "pending_authorization"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// session is one outstanding authorization attempt.
type session struct {
	id           string
	state        string
	codeVerifier string
	createdAt    time.Time
}

func newSession(state, verifier string, now time.Time) *session {
	return &session{
		id:           uuid.New().String(),
		state:        state,
		codeVerifier: verifier,
		createdAt:    now,
	}
}

// SessionContext is a read-only snapshot of the pending session, for
// inspection in tests and diagnostics.
type SessionContext struct {
	Pending      bool
	SessionID    string
	State        string
	CodeVerifier string
	CreatedAt    time.Time
}
