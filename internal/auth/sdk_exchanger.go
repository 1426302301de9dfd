package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"

	"tokenwarden/internal/clock"
	"tokenwarden/internal/provider"
	"tokenwarden/internal/transport"
	"tokenwarden/pkg/oauth"
)

// sdkExchanger serves confidential clients through golang.org/x/oauth2.
// Requests still go through the injected transport.
type sdkExchanger struct {
	provider provider.Config
	config   *oauth2.Config
	doer     transport.Doer
	clock    clock.Clock
}

func newSDKExchanger(cfg provider.Config, redirectURI string, doer transport.Doer, c clock.Clock) *sdkExchanger {
	return &sdkExchanger{
		provider: cfg,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       append([]string(nil), cfg.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthEndpoint,
				TokenURL:  cfg.TokenEndpoint,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		doer:  doer,
		clock: c,
	}
}

// withHTTPClient routes x/oauth2 requests through the transport.
func (e *sdkExchanger) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, transport.HTTPClient(e.doer))
}

func (e *sdkExchanger) AuthorizationURL(state string, pkce *oauth.PKCEChallenge) (string, error) {
	return e.config.AuthCodeURL(state, oauth2.S256ChallengeOption(pkce.CodeVerifier)), nil
}

func (e *sdkExchanger) ExchangeCode(ctx context.Context, code, verifier string) (*oauth.TokenResponse, error) {
	token, err := e.config.Exchange(e.withHTTPClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, classifySDKError(grantAuthorizationCode, err, oauth.ErrTokenExchangeFailed)
	}
	return oauth.TokenResponseFromOAuth2(token, e.clock.Now()), nil
}

func (e *sdkExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth.TokenResponse, error) {
	source := e.config.TokenSource(e.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, classifySDKError(grantRefreshToken, err, oauth.ErrTransientNetworkFailure)
	}

	resp := oauth.TokenResponseFromOAuth2(token, e.clock.Now())
	// x/oauth2 copies the old refresh token into the result when the
	// provider omits one; report only a rotated token.
	if resp.RefreshToken == refreshToken {
		resp.RefreshToken = ""
	}
	return resp, nil
}

func (e *sdkExchanger) Revoke(ctx context.Context, token string) error {
	return revokeToken(ctx, e.doer, e.provider, token)
}

// classifySDKError maps x/oauth2 errors onto the oauth error taxonomy.
// invalid_grant always wins; everything else wraps fallback.
func classifySDKError(op string, err error, fallback error) error {
	tokenErr := &oauth.TokenError{Op: op, Err: fallback, Description: err.Error()}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		tokenErr.Code = retrieveErr.ErrorCode
		tokenErr.Description = retrieveErr.ErrorDescription
		if retrieveErr.Response != nil {
			tokenErr.StatusCode = retrieveErr.Response.StatusCode
		}
		if op == grantRefreshToken && (retrieveErr.ErrorCode == oauth.InvalidGrantMarker ||
			strings.Contains(string(retrieveErr.Body), oauth.InvalidGrantMarker)) {
			tokenErr.Err = oauth.ErrInvalidGrant
		}
	}

	return tokenErr
}
