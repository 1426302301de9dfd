package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"

	"tokenwarden/internal/clock"
	"tokenwarden/internal/launcher"
	"tokenwarden/internal/provider"
	"tokenwarden/internal/storage"
	"tokenwarden/internal/transport"
	"tokenwarden/pkg/logging"
	"tokenwarden/pkg/oauth"
)

// Launcher runs the interactive consent step. See package launcher.
type Launcher interface {
	Launch(ctx context.Context, authURL string) (*launcher.CallbackResult, error)
}

// Client manages one provider's credential.
type Client struct {
	provider    provider.Config
	redirectURI string
	storageKey  string

	store     storage.Adapter
	transport transport.Doer
	clock     clock.Clock
	logger    *slog.Logger
	launcher  Launcher
	exchanger Exchanger

	refreshGroup singleflight.Group

	mu      sync.Mutex
	session *session
}

// Option configures a Client.
type Option func(*Client)

// WithStorage sets where the TokenRecord is persisted. Defaults to an
// in-memory store.
func WithStorage(store storage.Adapter) Option {
	return func(c *Client) { c.store = store }
}

// WithTransport sets the HTTP collaborator used for token, refresh and
// revocation calls.
func WithTransport(doer transport.Doer) Option {
	return func(c *Client) { c.transport = doer }
}

// WithClock sets the time source for expiry decisions.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithLogger sets the logger. Defaults to the "auth:<provider>" subsystem
// logger from pkg/logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithLauncher enables Authenticate to run the interactive flow itself.
func WithLauncher(l Launcher) Option {
	return func(c *Client) { c.launcher = l }
}

// WithExchanger overrides the provider-family exchanger chosen from the
// provider config.
func WithExchanger(e Exchanger) Option {
	return func(c *Client) { c.exchanger = e }
}

// NewClient validates cfg and redirectURI and returns a client in the
// NoCredential or Authenticated state, depending on what storage holds.
// Invalid input yields an *oauth.ConfigurationError.
func NewClient(cfg provider.Config, redirectURI string, opts ...Option) (*Client, error) {
	cfg, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := validateRedirectURI(redirectURI); err != nil {
		return nil, err
	}

	c := &Client{
		provider:    cfg,
		redirectURI: redirectURI,
		storageKey:  cfg.StorageKey(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = storage.NewMemoryStore()
	}
	if c.transport == nil {
		c.transport = transport.NewHTTP(nil)
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if c.logger == nil {
		c.logger = logging.Logger("auth:" + string(cfg.Name))
	}
	if c.exchanger == nil {
		c.exchanger = NewExchanger(cfg, redirectURI, c.transport, c.clock)
	}

	return c, nil
}

func validateRedirectURI(raw string) error {
	if raw == "" {
		return oauth.NewConfigurationError("redirect_uri", "must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return oauth.NewConfigurationError("redirect_uri", err.Error())
	}
	if !u.IsAbs() {
		return oauth.NewConfigurationError("redirect_uri", fmt.Sprintf("%q is not an absolute URL", raw))
	}
	return nil
}

// Provider returns the validated provider config.
func (c *Client) Provider() provider.Config {
	cfg := c.provider
	cfg.Scopes = append([]string(nil), cfg.Scopes...)
	return cfg
}

// RedirectURI returns the redirect URI sent with every authorization request.
func (c *Client) RedirectURI() string {
	return c.redirectURI
}

// CreateAuthURL starts a new authorization attempt and returns the URL to
// send the user to. Any pending attempt is discarded; only the latest one
// can be validated.
func (c *Client) CreateAuthURL() (string, error) {
	state, err := oauth.GenerateState()
	if err != nil {
		return "", err
	}
	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return "", err
	}

	authURL, err := c.exchanger.AuthorizationURL(state, pkce)
	if err != nil {
		return "", err
	}

	sess := newSession(state, pkce.CodeVerifier, c.clock.Now())

	c.mu.Lock()
	replaced := c.session != nil
	c.session = sess
	c.mu.Unlock()

	c.logger.Debug("Created authorization session",
		"session_id", sess.id,
		"replaced_pending", replaced,
	)

	return authURL, nil
}

// takeSession removes and returns the pending session.
func (c *Client) takeSession() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.session
	c.session = nil
	return sess
}

// Validate completes the flow with the code and state from the provider
// redirect. The pending session is consumed whatever the outcome.
//
// It fails with oauth.ErrStateMismatch when nothing is pending, the state
// does not match or code is empty, and with oauth.ErrTokenExchangeFailed
// when the token endpoint rejects the code. Nothing is stored on failure.
func (c *Client) Validate(ctx context.Context, code, state string) (*oauth.TokenRecord, error) {
	sess := c.takeSession()

	switch {
	case sess == nil:
		return nil, c.rejectValidation("", "no pending authorization")
	case subtle.ConstantTimeCompare([]byte(sess.state), []byte(state)) != 1:
		return nil, c.rejectValidation(sess.id, "state does not match")
	case code == "":
		return nil, c.rejectValidation(sess.id, "authorization code is empty")
	}

	resp, err := c.exchanger.ExchangeCode(ctx, code, sess.codeVerifier)
	if err != nil {
		c.logger.Warn("Authorization code exchange failed", "session_id", sess.id, "error", err)
		c.audit("token_exchange", err)
		if !errors.Is(err, oauth.ErrTokenExchangeFailed) {
			err = fmt.Errorf("%w: %v", oauth.ErrTokenExchangeFailed, err)
		}
		return nil, err
	}
	if resp.AccessToken == "" {
		err := &oauth.TokenError{Op: grantAuthorizationCode, Description: "response missing access_token", Err: oauth.ErrTokenExchangeFailed}
		c.audit("token_exchange", err)
		return nil, err
	}

	record := oauth.NewTokenRecord(resp, c.clock.Now())
	if err := c.store.Set(ctx, c.storageKey, record); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	c.logger.Info("Authorization completed",
		"session_id", sess.id,
		"has_refresh_token", record.HasRefreshToken(),
		"expires_at", record.Expiry(),
	)
	c.audit("token_exchange", nil)

	return record, nil
}

func (c *Client) rejectValidation(sessionID, reason string) error {
	c.logger.Warn("Rejected authorization callback", "session_id", sessionID, "reason", reason)
	err := fmt.Errorf("%w: %s", oauth.ErrStateMismatch, reason)
	c.audit("state_validation", err)
	return err
}

// GetAuthToken returns a usable access token, refreshing it first if it is
// within oauth.RefreshBuffer of expiry. It returns "" with a nil error when
// nothing usable is available; storage and network failures are logged, not
// returned.
//
// With interactive set and no usable token it starts a new authorization
// attempt and returns an *InteractionRequiredError carrying its URL.
func (c *Client) GetAuthToken(ctx context.Context, interactive bool) (string, error) {
	if token := c.usableToken(ctx); token != "" {
		return token, nil
	}
	if !interactive {
		return "", nil
	}
	return "", c.interactionRequired()
}

func (c *Client) interactionRequired() error {
	authURL, err := c.CreateAuthURL()
	if err != nil {
		return err
	}
	return &InteractionRequiredError{Provider: c.provider.Name, AuthURL: authURL}
}

// usableToken implements the read path.
func (c *Client) usableToken(ctx context.Context) string {
	record, err := c.store.Get(ctx, c.storageKey)
	if err != nil {
		c.logger.Warn("Failed to read stored token", "key", c.storageKey, "error", err)
		return ""
	}
	if record == nil {
		return ""
	}

	now := c.clock.Now()

	if record.AccessToken != "" && !record.DueForRefresh(now, oauth.RefreshBuffer) {
		return record.AccessToken
	}

	if !record.HasRefreshToken() {
		// Nothing to renew with; hand out the token until it actually expires.
		if record.AccessToken != "" && !record.Expired(now) {
			return record.AccessToken
		}
		c.logger.Debug("Stored token expired and cannot be refreshed")
		return ""
	}

	refreshed, err := c.refreshRecord(ctx, record)
	if err == nil {
		return refreshed.AccessToken
	}
	if oauth.IsInvalidGrant(err) {
		return ""
	}

	// Transient failure: the old token may still have a few seconds left.
	if record.AccessToken != "" && !record.Expired(now) {
		return record.AccessToken
	}
	return ""
}

// refreshRecord renews record and persists the result. Concurrent callers
// for the same key share one network call, which runs detached from any
// single caller's cancellation; each caller stops waiting when its own ctx
// ends.
func (c *Client) refreshRecord(ctx context.Context, record *oauth.TokenRecord) (*oauth.TokenRecord, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(c.storageKey, func() (interface{}, error) {
		return c.refreshStored(flightCtx, record)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Joined in-flight token refresh", "key", c.storageKey)
		}
		return res.Val.(*oauth.TokenRecord), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", oauth.ErrTransientNetworkFailure, ctx.Err())
	}
}

// refreshStored re-reads the stored record before redeeming its refresh
// token. A record that another reader or process already renewed is
// returned as is. An invalid_grant removes the record only while it still
// holds the rejected refresh token.
func (c *Client) refreshStored(ctx context.Context, seen *oauth.TokenRecord) (*oauth.TokenRecord, error) {
	base := seen
	current, err := c.store.Get(ctx, c.storageKey)
	switch {
	case err != nil:
		c.logger.Warn("Failed to re-read stored token before refresh", "error", err)
	case current == nil:
		return nil, fmt.Errorf("%w: stored token was removed", oauth.ErrInvalidGrant)
	case current.RefreshToken != seen.RefreshToken ||
		(current.AccessToken != "" && !current.DueForRefresh(c.clock.Now(), oauth.RefreshBuffer)):
		c.logger.Debug("Stored token already renewed", "key", c.storageKey)
		return current, nil
	default:
		base = current
	}

	c.logger.Debug("Refreshing access token", "key", c.storageKey)

	resp, err := c.exchanger.Refresh(ctx, base.RefreshToken)
	if err != nil {
		if oauth.IsInvalidGrant(err) {
			c.logger.Warn("Refresh token rejected; re-authentication required", "error", err)
			c.removeIfUnchanged(ctx, base.RefreshToken)
			c.audit("token_refresh", err)
			return nil, err
		}
		c.logger.Warn("Token refresh failed; will retry on next read", "error", err)
		return nil, err
	}

	updated := oauth.NewTokenRecord(resp, c.clock.Now())
	if updated.RefreshToken == "" {
		updated.RefreshToken = base.RefreshToken
	}
	if updated.IDToken == "" {
		updated.IDToken = base.IDToken
	}
	if updated.Scope == "" {
		updated.Scope = base.Scope
	}

	if err := c.store.Set(ctx, c.storageKey, updated); err != nil {
		c.logger.Warn("Failed to store refreshed token", "error", err)
	}

	c.logger.Debug("Access token refreshed",
		"rotated_refresh_token", updated.RefreshToken != base.RefreshToken,
		"expires_at", updated.Expiry(),
	)
	c.audit("token_refresh", nil)
	return updated, nil
}

// removeIfUnchanged deletes the stored record if it still carries
// rejectedRefreshToken.
func (c *Client) removeIfUnchanged(ctx context.Context, rejectedRefreshToken string) {
	current, err := c.store.Get(ctx, c.storageKey)
	if err != nil {
		c.logger.Warn("Failed to re-read rejected token", "error", err)
		return
	}
	if current == nil || current.RefreshToken != rejectedRefreshToken {
		return
	}
	if err := c.store.Remove(ctx, c.storageKey); err != nil {
		c.logger.Warn("Failed to remove rejected token", "error", err)
	}
}

// RefreshAccessToken redeems refreshToken without touching storage. It
// returns (nil, nil) for transient failures so callers can retry later, and
// an error wrapping oauth.ErrInvalidGrant when the provider rejected the
// token for good.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth.TokenResponse, error) {
	resp, err := c.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		if oauth.IsInvalidGrant(err) {
			return nil, err
		}
		c.logger.Warn("Token refresh failed", "error", err)
		return nil, nil
	}
	return resp, nil
}

// Authenticate makes sure a usable token exists. When none does and a
// Launcher is configured it runs the whole interactive flow; without a
// launcher it returns false and an *InteractionRequiredError.
func (c *Client) Authenticate(ctx context.Context) (bool, error) {
	if c.usableToken(ctx) != "" {
		return true, nil
	}
	if c.launcher == nil {
		return false, c.interactionRequired()
	}

	authURL, err := c.CreateAuthURL()
	if err != nil {
		return false, err
	}

	result, err := c.launcher.Launch(ctx, authURL)
	if err != nil {
		// Drop the session the launcher never completed.
		c.takeSession()
		return false, fmt.Errorf("interactive authorization failed: %w", err)
	}

	if _, err := c.Validate(ctx, result.Code, result.State); err != nil {
		return false, err
	}
	return true, nil
}

// Deauthenticate revokes the stored credential at the provider when
// possible and removes it locally. Revocation is best-effort; local removal
// always happens. It always returns true.
func (c *Client) Deauthenticate(ctx context.Context) bool {
	c.takeSession()

	record, err := c.store.Get(ctx, c.storageKey)
	if err != nil {
		c.logger.Warn("Failed to read stored token before sign-out", "error", err)
	}

	if record != nil && c.provider.CanRevoke() {
		token := record.RefreshToken
		if token == "" {
			token = record.AccessToken
		}
		if token != "" {
			if err := c.exchanger.Revoke(ctx, token); err != nil {
				c.logger.Warn("Token revocation failed", "error", err)
				c.audit("token_revoke", err)
			} else {
				c.audit("token_revoke", nil)
			}
		}
	}

	if err := c.store.Remove(ctx, c.storageKey); err != nil {
		c.logger.Warn("Failed to remove stored token", "error", err)
	}

	c.logger.Info("Signed out")
	return true
}

// IsAuthenticated reports whether a usable token is available without user
// interaction. It never panics or errors.
func (c *Client) IsAuthenticated(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered panic while checking authentication", "panic", r)
			ok = false
		}
	}()

	token, _ := c.GetAuthToken(ctx, false)
	return token != ""
}

// State reports the protocol state from the pending session and what
// storage holds. It does not refresh or call the provider.
func (c *Client) State(ctx context.Context) AuthState {
	record, err := c.store.Get(ctx, c.storageKey)
	if err == nil && record != nil && (record.AccessToken != "" || record.HasRefreshToken()) {
		return StateAuthenticated
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return StatePendingAuthorization
	}
	return StateNoCredential
}

// Context returns a snapshot of the pending session.
func (c *Client) Context() SessionContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return SessionContext{}
	}
	return SessionContext{
		Pending:      true,
		SessionID:    c.session.id,
		State:        c.session.state,
		CodeVerifier: c.session.codeVerifier,
		CreatedAt:    c.session.createdAt,
	}
}

// StoredRecord returns the persisted record as-is, without refreshing.
func (c *Client) StoredRecord(ctx context.Context) (*oauth.TokenRecord, error) {
	return c.store.Get(ctx, c.storageKey)
}

func (c *Client) audit(action string, err error) {
	event := logging.AuditEvent{
		Action:   action,
		Outcome:  "success",
		Provider: string(c.provider.Name),
		Key:      c.storageKey,
		Error:    err,
	}
	if err != nil {
		event.Outcome = "failure"
	}
	logging.Audit(event)
}
