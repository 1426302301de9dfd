package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"tokenwarden/internal/clock"
	"tokenwarden/internal/provider"
	"tokenwarden/internal/transport"
	"tokenwarden/pkg/oauth"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// Exchanger performs the provider-facing half of the flow. One
// implementation exists per provider family.
type Exchanger interface {
	// AuthorizationURL builds the consent screen URL for state and pkce.
	AuthorizationURL(state string, pkce *oauth.PKCEChallenge) (string, error)

	// ExchangeCode trades an authorization code for tokens. Failures wrap
	// oauth.ErrTokenExchangeFailed.
	ExchangeCode(ctx context.Context, code, verifier string) (*oauth.TokenResponse, error)

	// Refresh redeems a refresh token. Failures wrap oauth.ErrInvalidGrant
	// or oauth.ErrTransientNetworkFailure.
	Refresh(ctx context.Context, refreshToken string) (*oauth.TokenResponse, error)

	// Revoke invalidates token at the provider (RFC 7009).
	Revoke(ctx context.Context, token string) error
}

// NewExchanger selects the Exchanger for cfg: confidential clients go
// through golang.org/x/oauth2, public clients through plain form POSTs.
// Both send their requests through doer.
func NewExchanger(cfg provider.Config, redirectURI string, doer transport.Doer, c clock.Clock) Exchanger {
	if cfg.Confidential {
		return newSDKExchanger(cfg, redirectURI, doer, c)
	}
	return &pkceExchanger{provider: cfg, redirectURI: redirectURI, doer: doer}
}

// buildAuthorizationURL appends the authorization request parameters to the
// provider's auth endpoint, keeping any query it already has.
func buildAuthorizationURL(cfg provider.Config, redirectURI, state string, pkce *oauth.PKCEChallenge) (string, error) {
	u, err := url.Parse(cfg.AuthEndpoint)
	if err != nil {
		return "", oauth.NewConfigurationError("auth_endpoint", err.Error())
	}

	q := u.Query()
	q.Set("client_id", cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", cfg.ScopeString())
	q.Set("redirect_uri", redirectURI)
	q.Set("code_challenge_method", oauth.CodeChallengeMethodS256)
	q.Set("code_challenge", pkce.CodeChallenge)
	q.Set("state", state)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// pkceExchanger serves public clients that authenticate with PKCE alone.
type pkceExchanger struct {
	provider    provider.Config
	redirectURI string
	doer        transport.Doer
}

func (e *pkceExchanger) AuthorizationURL(state string, pkce *oauth.PKCEChallenge) (string, error) {
	return buildAuthorizationURL(e.provider, e.redirectURI, state, pkce)
}

func (e *pkceExchanger) ExchangeCode(ctx context.Context, code, verifier string) (*oauth.TokenResponse, error) {
	resp, err := transport.PostForm(ctx, e.doer, e.provider.TokenEndpoint, url.Values{
		"grant_type":    {grantAuthorizationCode},
		"code":          {code},
		"redirect_uri":  {e.redirectURI},
		"client_id":     {e.provider.ClientID},
		"code_verifier": {verifier},
	})
	if err != nil {
		return nil, &oauth.TokenError{Op: grantAuthorizationCode, Description: err.Error(), Err: oauth.ErrTokenExchangeFailed}
	}

	if !resp.OK() {
		code, desc := oauth.ParseErrorBody(resp.Body)
		return nil, &oauth.TokenError{
			Op:          grantAuthorizationCode,
			StatusCode:  resp.StatusCode,
			Code:        code,
			Description: desc,
			Err:         oauth.ErrTokenExchangeFailed,
		}
	}

	token, err := decodeTokenResponse(resp)
	if err != nil {
		return nil, &oauth.TokenError{Op: grantAuthorizationCode, StatusCode: resp.StatusCode, Description: err.Error(), Err: oauth.ErrTokenExchangeFailed}
	}
	if token.AccessToken == "" {
		return nil, &oauth.TokenError{Op: grantAuthorizationCode, StatusCode: resp.StatusCode, Description: "response missing access_token", Err: oauth.ErrTokenExchangeFailed}
	}

	return token, nil
}

func (e *pkceExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth.TokenResponse, error) {
	resp, err := transport.PostForm(ctx, e.doer, e.provider.TokenEndpoint, url.Values{
		"grant_type":    {grantRefreshToken},
		"client_id":     {e.provider.ClientID},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return nil, &oauth.TokenError{Op: grantRefreshToken, Description: err.Error(), Err: oauth.ErrTransientNetworkFailure}
	}

	if !resp.OK() {
		return nil, oauth.ClassifyRefreshFailure(resp.StatusCode, resp.Body)
	}

	token, err := decodeTokenResponse(resp)
	if err != nil {
		tokenErr := oauth.ClassifyRefreshFailure(resp.StatusCode, resp.Body)
		tokenErr.Description = err.Error()
		return nil, tokenErr
	}
	if token.AccessToken == "" {
		return nil, &oauth.TokenError{Op: grantRefreshToken, StatusCode: resp.StatusCode, Description: "response missing access_token", Err: oauth.ErrTransientNetworkFailure}
	}

	return token, nil
}

// decodeTokenResponse reads a successful token endpoint reply. Some
// providers answer form-encoded, sometimes with an error inside a 200.
func decodeTokenResponse(resp *transport.Response) (*oauth.TokenResponse, error) {
	switch resp.ContentType() {
	case "application/x-www-form-urlencoded", "text/plain":
	default:
		var token oauth.TokenResponse
		if err := resp.DecodeJSON(&token); err != nil {
			return nil, err
		}
		return &token, nil
	}

	vals, err := url.ParseQuery(string(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("decode form token response: %w", err)
	}
	if code := vals.Get("error"); code != "" {
		return nil, fmt.Errorf("%s: %s", code, vals.Get("error_description"))
	}

	token := &oauth.TokenResponse{
		AccessToken:  vals.Get("access_token"),
		TokenType:    vals.Get("token_type"),
		RefreshToken: vals.Get("refresh_token"),
		Scope:        vals.Get("scope"),
		IDToken:      vals.Get("id_token"),
	}
	if v := vals.Get("expires_in"); v != "" {
		if token.ExpiresIn, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid expires_in %q", v)
		}
	}
	return token, nil
}

func (e *pkceExchanger) Revoke(ctx context.Context, token string) error {
	return revokeToken(ctx, e.doer, e.provider, token)
}

// revokeToken posts an RFC 7009 revocation request. Confidential clients
// authenticate with HTTP basic auth.
func revokeToken(ctx context.Context, doer transport.Doer, cfg provider.Config, token string) error {
	if !cfg.CanRevoke() {
		return nil
	}

	form := url.Values{
		"token":     {token},
		"client_id": {cfg.ClientID},
	}
	req := &transport.Request{
		Method: http.MethodPost,
		URL:    cfg.RevokeEndpoint,
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   []byte(form.Encode()),
	}
	if cfg.Confidential {
		basic := &http.Request{Header: http.Header{}}
		basic.SetBasicAuth(url.QueryEscape(cfg.ClientID), url.QueryEscape(cfg.ClientSecret))
		req.Header.Set("Authorization", basic.Header.Get("Authorization"))
	}

	resp, err := doer.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("revocation request failed: %w", err)
	}
	if !resp.OK() {
		code, desc := oauth.ParseErrorBody(resp.Body)
		return &oauth.TokenError{Op: "revoke", StatusCode: resp.StatusCode, Code: code, Description: desc, Err: oauth.ErrTransientNetworkFailure}
	}
	return nil
}
