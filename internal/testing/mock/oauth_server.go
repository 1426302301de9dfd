package mock

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokenwarden/internal/clock"
	"tokenwarden/internal/provider"
)

// jwtHeader is the pre-computed base64-encoded JWT header for unsigned tokens.
// Value: base64url({"alg":"none","typ":"JWT"})
//
// SECURITY WARNING: ID tokens issued by the mock server are unsigned and only
// suitable for tests.
const jwtHeader = "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0"

// Default identity placed in issued ID tokens.
const (
	DefaultSubject = "test-user-123"
	DefaultEmail   = "test@example.com"
)

type idTokenClaims struct {
	Iss   string `json:"iss"`
	Sub   string `json:"sub"`
	Aud   string `json:"aud"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// OAuthServerConfig configures the mock OAuth server behavior
type OAuthServerConfig struct {
	// ClientID is the expected OAuth client ID
	ClientID string

	// ClientSecret is the expected client secret. When set, /token requires
	// it either as HTTP basic auth or as a client_secret form field.
	ClientSecret string

	// TokenLifetime is reported as expires_in. Defaults to one hour.
	TokenLifetime time.Duration

	// OmitExpiresIn leaves expires_in out of token responses.
	OmitExpiresIn bool

	// RotateRefreshTokens issues a new refresh token on every refresh. When
	// false, refresh responses carry no refresh_token at all.
	RotateRefreshTokens bool

	// Clock defaults to the real clock.
	Clock clock.Clock

	// SimulateErrors can be set to simulate various error conditions
	SimulateErrors *OAuthErrorSimulation
}

// OAuthErrorSimulation allows simulating error conditions
type OAuthErrorSimulation struct {
	// TokenEndpointStatus, when non-zero, makes every /token call fail with
	// this status and a server_error body carrying TokenEndpointError.
	TokenEndpointStatus int
	TokenEndpointError  string

	// InvalidGrant rejects refresh_token grants with invalid_grant.
	InvalidGrant bool

	// RefreshStatus, when non-zero, makes refresh_token grants fail with this
	// status and a temporarily_unavailable body.
	RefreshStatus int

	// OmitAccessToken returns a 200 token response without access_token.
	OmitAccessToken bool

	// RefreshDelay holds refresh responses for the given duration.
	RefreshDelay time.Duration

	// RevokeStatus, when non-zero, makes /revoke fail with this status.
	RevokeStatus int

	// DenyAuthorization redirects from /authorize with error=access_denied.
	DenyAuthorization bool
}

// OAuthServer is a mock OAuth 2.0 authorization server
type OAuthServer struct {
	config OAuthServerConfig
	server *httptest.Server
	clock  clock.Clock

	mu            sync.Mutex
	authCodes     map[string]*authCodeEntry
	refreshTokens map[string]*issuedToken
	accessTokens  map[string]*issuedToken
	revoked       []string
	exchangeCount int
	refreshCount  int
}

type authCodeEntry struct {
	ClientID        string
	RedirectURI     string
	Scope           string
	State           string
	CodeChallenge   string
	ChallengeMethod string
	CreatedAt       time.Time
}

type issuedToken struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ClientID     string
	ExpiresAt    time.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// NewOAuthServer creates and starts a mock OAuth server on a loopback port.
// Call Close when done.
func NewOAuthServer(config OAuthServerConfig) *OAuthServer {
	if config.TokenLifetime == 0 {
		config.TokenLifetime = time.Hour
	}
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}

	c := config.Clock
	if c == nil {
		c = clock.Real{}
	}

	s := &OAuthServer{
		config:        config,
		clock:         c,
		authCodes:     make(map[string]*authCodeEntry),
		refreshTokens: make(map[string]*issuedToken),
		accessTokens:  make(map[string]*issuedToken),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", s.handleAuthorize)
	mux.HandleFunc("/token", s.handleToken)
	mux.HandleFunc("/revoke", s.handleRevoke)
	s.server = httptest.NewServer(mux)

	return s
}

// Close shuts the server down.
func (s *OAuthServer) Close() {
	s.server.Close()
}

// URL returns the base URL of the server.
func (s *OAuthServer) URL() string {
	return s.server.URL
}

// AuthorizeURL returns the authorization endpoint.
func (s *OAuthServer) AuthorizeURL() string {
	return s.server.URL + "/authorize"
}

// TokenURL returns the token endpoint.
func (s *OAuthServer) TokenURL() string {
	return s.server.URL + "/token"
}

// RevokeURL returns the revocation endpoint.
func (s *OAuthServer) RevokeURL() string {
	return s.server.URL + "/revoke"
}

// ProviderConfig returns a provider descriptor pointing at this server. The
// client is confidential iff the server was configured with a secret.
func (s *OAuthServer) ProviderConfig(name provider.Name) provider.Config {
	return provider.Config{
		Name:           name,
		ClientID:       s.config.ClientID,
		ClientSecret:   s.config.ClientSecret,
		Confidential:   s.config.ClientSecret != "",
		Scopes:         []string{"openid", "profile"},
		AuthEndpoint:   s.AuthorizeURL(),
		TokenEndpoint:  s.TokenURL(),
		RevokeEndpoint: s.RevokeURL(),
	}
}

// SetErrorSimulation replaces the error simulation at runtime. nil clears it.
func (s *OAuthServer) SetErrorSimulation(sim *OAuthErrorSimulation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.SimulateErrors = sim
}

func (s *OAuthServer) simulation() OAuthErrorSimulation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.SimulateErrors == nil {
		return OAuthErrorSimulation{}
	}
	return *s.config.SimulateErrors
}

// Approve simulates the user consenting on the authorization page for the
// given authorization URL and returns the code and state that the provider
// would have redirected back with.
func (s *OAuthServer) Approve(authURL string) (code, state string, err error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", "", fmt.Errorf("parse authorization url: %w", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" {
		return "", "", fmt.Errorf("unsupported response_type %q", q.Get("response_type"))
	}
	if q.Get("client_id") != s.config.ClientID {
		return "", "", fmt.Errorf("unexpected client_id %q", q.Get("client_id"))
	}
	if q.Get("code_challenge") == "" {
		return "", "", fmt.Errorf("code_challenge missing")
	}

	state = q.Get("state")
	code = s.issueAuthCode(q)
	return code, state, nil
}

// ExchangeCount returns how many authorization codes were exchanged
// successfully.
func (s *OAuthServer) ExchangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchangeCount
}

// RefreshCount returns how many refresh_token grants were received,
// including failed ones.
func (s *OAuthServer) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCount
}

// RevokedTokens returns the tokens posted to /revoke, in order.
func (s *OAuthServer) RevokedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.revoked...)
}

// ValidateToken reports whether accessToken was issued and is neither
// expired nor revoked.
func (s *OAuthServer) ValidateToken(accessToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.accessTokens[accessToken]
	if !ok {
		return false
	}
	return s.clock.Now().Before(token.ExpiresAt)
}

func (s *OAuthServer) issueAuthCode(q url.Values) string {
	code := uuid.New().String()
	s.mu.Lock()
	s.authCodes[code] = &authCodeEntry{
		ClientID:        q.Get("client_id"),
		RedirectURI:     q.Get("redirect_uri"),
		Scope:           q.Get("scope"),
		State:           q.Get("state"),
		CodeChallenge:   q.Get("code_challenge"),
		ChallengeMethod: q.Get("code_challenge_method"),
		CreatedAt:       s.clock.Now(),
	}
	s.mu.Unlock()
	return code
}

// handleAuthorize auto-approves and redirects back to redirect_uri.
func (s *OAuthServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("response_type") != "code" {
		http.Error(w, "unsupported_response_type", http.StatusBadRequest)
		return
	}
	if q.Get("client_id") != s.config.ClientID {
		http.Error(w, "invalid_client", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge") == "" {
		http.Error(w, "PKCE required: code_challenge missing", http.StatusBadRequest)
		return
	}

	redirectURL, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || !redirectURL.IsAbs() {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	params := redirectURL.Query()
	if s.simulation().DenyAuthorization {
		params.Set("error", "access_denied")
		params.Set("error_description", "the user denied the request")
	} else {
		params.Set("code", s.issueAuthCode(q))
	}
	if state := q.Get("state"); state != "" {
		params.Set("state", state)
	}
	redirectURL.RawQuery = params.Encode()

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// handleToken handles token exchange requests
func (s *OAuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	sim := s.simulation()
	if sim.TokenEndpointStatus != 0 {
		writeOAuthError(w, sim.TokenEndpointStatus, "server_error", sim.TokenEndpointError)
		return
	}

	if !s.authenticateClient(r) {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	switch grantType := r.FormValue("grant_type"); grantType {
	case "authorization_code":
		s.handleAuthCodeExchange(w, r, sim)
	case "refresh_token":
		s.handleRefreshToken(w, r, sim)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type",
			fmt.Sprintf("grant_type %s not supported", grantType))
	}
}

func (s *OAuthServer) authenticateClient(r *http.Request) bool {
	clientID, secret, ok := r.BasicAuth()
	if ok {
		// x/oauth2 url-encodes basic auth credentials.
		clientID, _ = url.QueryUnescape(clientID)
		secret, _ = url.QueryUnescape(secret)
	} else {
		clientID = r.FormValue("client_id")
		secret = r.FormValue("client_secret")
	}

	if clientID != s.config.ClientID {
		return false
	}
	return s.config.ClientSecret == "" || secret == s.config.ClientSecret
}

func (s *OAuthServer) handleAuthCodeExchange(w http.ResponseWriter, r *http.Request, sim OAuthErrorSimulation) {
	code := r.FormValue("code")
	codeVerifier := r.FormValue("code_verifier")

	s.mu.Lock()
	entry, exists := s.authCodes[code]
	if exists {
		delete(s.authCodes, code)
	}
	s.mu.Unlock()

	if !exists {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "authorization code not found or expired")
		return
	}
	if entry.RedirectURI != r.FormValue("redirect_uri") {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	}
	if codeVerifier == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code_verifier required")
		return
	}
	if !verifyPKCE(entry.CodeChallenge, entry.ChallengeMethod, codeVerifier) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code_verifier verification failed")
		return
	}

	token := s.issue(entry.ClientID, entry.Scope, "")

	s.mu.Lock()
	s.exchangeCount++
	s.mu.Unlock()

	s.writeToken(w, token, true, sim)
}

func (s *OAuthServer) handleRefreshToken(w http.ResponseWriter, r *http.Request, sim OAuthErrorSimulation) {
	refreshToken := r.FormValue("refresh_token")

	s.mu.Lock()
	s.refreshCount++
	original, ok := s.refreshTokens[refreshToken]
	s.mu.Unlock()

	if sim.RefreshDelay > 0 {
		time.Sleep(sim.RefreshDelay)
	}

	if sim.InvalidGrant {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token is invalid or revoked")
		return
	}
	if sim.RefreshStatus != 0 {
		writeOAuthError(w, sim.RefreshStatus, "temporarily_unavailable", "try again later")
		return
	}
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token not found")
		return
	}

	keep := refreshToken
	if s.config.RotateRefreshTokens {
		keep = ""
	}
	token := s.issue(original.ClientID, original.Scope, keep)

	s.mu.Lock()
	delete(s.accessTokens, original.AccessToken)
	if s.config.RotateRefreshTokens {
		delete(s.refreshTokens, refreshToken)
	}
	s.mu.Unlock()

	s.writeToken(w, token, s.config.RotateRefreshTokens, sim)
}

// issue mints a new access token. An empty refreshToken mints a new one too.
func (s *OAuthServer) issue(clientID, scope, refreshToken string) *issuedToken {
	if refreshToken == "" {
		refreshToken = "rt-" + uuid.New().String()
	}
	token := &issuedToken{
		AccessToken:  "at-" + uuid.New().String(),
		RefreshToken: refreshToken,
		Scope:        scope,
		ClientID:     clientID,
		ExpiresAt:    s.clock.Now().Add(s.config.TokenLifetime),
	}

	s.mu.Lock()
	s.accessTokens[token.AccessToken] = token
	s.refreshTokens[token.RefreshToken] = token
	s.mu.Unlock()

	return token
}

func (s *OAuthServer) writeToken(w http.ResponseWriter, token *issuedToken, withRefresh bool, sim OAuthErrorSimulation) {
	resp := tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		Scope:       token.Scope,
		IDToken:     s.generateIDToken(token.ClientID),
	}
	if withRefresh {
		resp.RefreshToken = token.RefreshToken
	}
	if !s.config.OmitExpiresIn {
		resp.ExpiresIn = int64(s.config.TokenLifetime.Seconds())
	}
	if sim.OmitAccessToken {
		resp.AccessToken = ""
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleRevoke implements RFC 7009. Unknown tokens are accepted silently.
func (s *OAuthServer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	token := r.FormValue("token")

	s.mu.Lock()
	s.revoked = append(s.revoked, token)
	s.mu.Unlock()

	if status := s.simulation().RevokeStatus; status != 0 {
		writeOAuthError(w, status, "server_error", "revocation failed")
		return
	}

	s.mu.Lock()
	if issued, ok := s.refreshTokens[token]; ok {
		delete(s.accessTokens, issued.AccessToken)
		delete(s.refreshTokens, token)
	}
	delete(s.accessTokens, token)
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

// verifyPKCE verifies the PKCE code verifier against the challenge. Only S256
// is accepted.
func verifyPKCE(challenge, method, verifier string) bool {
	if method != "S256" {
		return false
	}
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:]) == challenge
}

// generateIDToken generates an unsigned JWT ID token for testing.
func (s *OAuthServer) generateIDToken(clientID string) string {
	now := s.clock.Now()

	claims := idTokenClaims{
		Iss:   s.server.URL,
		Sub:   DefaultSubject,
		Aud:   clientID,
		Exp:   now.Add(s.config.TokenLifetime).Unix(),
		Iat:   now.Unix(),
		Email: DefaultEmail,
		Name:  "Test User",
	}

	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		panic(fmt.Errorf("failed to marshal ID token claims: %w", err))
	}

	// header.payload. with an empty signature
	return fmt.Sprintf("%s.%s.", jwtHeader, base64.RawURLEncoding.EncodeToString(claimsJSON))
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}
