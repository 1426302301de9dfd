package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"tokenwarden/pkg/logging"
)

// CallbackTimeout is how long Loopback waits for the user to finish the
// consent screen.
const CallbackTimeout = 10 * time.Minute

// ErrAlreadyUsed is returned when Launch is called twice on a Loopback.
var ErrAlreadyUsed = errors.New("loopback launcher already used")

// CallbackResult represents the result of an OAuth callback.
type CallbackResult struct {
	// Code is the authorization code from the OAuth provider.
	Code string

	// State is the state parameter to verify against the original request.
	State string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the callback result represents an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// AuthorizationError is returned when the provider redirects back with an
// error instead of a code, e.g. because the user denied consent.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return "authorization denied: " + e.Code
	}
	return fmt.Sprintf("authorization denied: %s: %s", e.Code, e.Description)
}

// Launcher shows the authorization URL to the user and returns the
// parameters the provider redirected back with.
type Launcher interface {
	Launch(ctx context.Context, authURL string) (*CallbackResult, error)
}

// Loopback is a Launcher that opens the system browser and receives the
// redirect on 127.0.0.1. It is single-use.
type Loopback struct {
	server      *CallbackServer
	openBrowser func(url string) error
	out         io.Writer
	timeout     time.Duration
	used        bool
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithBrowserOpener replaces OpenBrowser, e.g. to drive the flow from a test.
func WithBrowserOpener(fn func(url string) error) LoopbackOption {
	return func(l *Loopback) { l.openBrowser = fn }
}

// WithOutput sets where the authorization URL is printed when the browser
// cannot be opened. Defaults to stderr.
func WithOutput(w io.Writer) LoopbackOption {
	return func(l *Loopback) { l.out = w }
}

// WithTimeout overrides CallbackTimeout.
func WithTimeout(d time.Duration) LoopbackOption {
	return func(l *Loopback) { l.timeout = d }
}

// NewLoopback binds 127.0.0.1:port so that RedirectURI is known before the
// auth client is built. Port 0 picks a free port.
func NewLoopback(port int, opts ...LoopbackOption) (*Loopback, error) {
	server := NewCallbackServer(port)
	if err := server.Listen(); err != nil {
		return nil, err
	}

	l := &Loopback{
		server:      server,
		openBrowser: OpenBrowser,
		out:         os.Stderr,
		timeout:     CallbackTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// RedirectURI returns http://127.0.0.1:<port>/callback.
func (l *Loopback) RedirectURI() string {
	return l.server.RedirectURI()
}

// Close releases the port if Launch was never called.
func (l *Loopback) Close() {
	l.server.Stop()
}

// Launch serves the callback endpoint, opens authURL and waits for the
// redirect. A provider error parameter is returned as *AuthorizationError.
func (l *Loopback) Launch(ctx context.Context, authURL string) (*CallbackResult, error) {
	if l.used {
		return nil, ErrAlreadyUsed
	}
	l.used = true

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.server.Start(ctx); err != nil {
		return nil, err
	}
	defer l.server.Stop()

	logging.Debug("launcher", "Waiting for OAuth callback on %s", l.RedirectURI())

	if err := l.openBrowser(authURL); err != nil {
		logging.Debug("launcher", "Could not open browser: %v", err)
		fmt.Fprintf(l.out, "Open the following URL in your browser to continue:\n\n  %s\n\n", authURL)
	}

	result, err := l.server.WaitForCallback(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out waiting for authorization callback: %w", err)
		}
		return nil, err
	}

	if result.IsError() {
		return result, &AuthorizationError{Code: result.Error, Description: result.ErrorDescription}
	}
	if result.Code == "" {
		return result, errors.New("authorization callback did not include a code")
	}

	return result, nil
}
