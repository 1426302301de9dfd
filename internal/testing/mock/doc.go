// Package mock provides test doubles for tokenwarden components.
//
// Key Components:
//
// MockClock: a clock.Clock whose time only moves when a test says so, used
// to push stored tokens across the refresh buffer deterministically.
//
// OAuthServer: an in-process OAuth 2.0 authorization server with
// /authorize, /token and /revoke endpoints. It verifies PKCE S256 challenges,
// optionally checks a client secret, rotates or keeps refresh tokens, and can
// be told to answer refreshes with invalid_grant or arbitrary errors.
//
// Usage:
//
//	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
//	defer server.Close()
//
//	authURL, _ := client.CreateAuthURL()
//	code, state, err := server.Approve(authURL)
//	_, err = client.Validate(ctx, code, state)
package mock
