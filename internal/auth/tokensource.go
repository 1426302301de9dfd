package auth

import (
	"context"

	"golang.org/x/oauth2"

	"tokenwarden/pkg/oauth"
)

// TokenSource adapts the client to oauth2.TokenSource so API clients can be
// built with oauth2.NewClient. Every Token call goes through the read path,
// including refresh; when no token is available it returns oauth.ErrNoToken.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &clientTokenSource{ctx: ctx, client: c}
}

type clientTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *clientTokenSource) Token() (*oauth2.Token, error) {
	accessToken := s.client.usableToken(s.ctx)
	if accessToken == "" {
		return nil, oauth.ErrNoToken
	}

	record, err := s.client.store.Get(s.ctx, s.client.storageKey)
	if err == nil && record != nil && record.AccessToken == accessToken {
		token := record.ToOAuth2Token()
		if token.TokenType == "" {
			token.TokenType = "Bearer"
		}
		return token, nil
	}

	return &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}, nil
}
