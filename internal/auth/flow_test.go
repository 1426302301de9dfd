package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"tokenwarden/internal/launcher"
	"tokenwarden/internal/provider"
	"tokenwarden/internal/storage"
	"tokenwarden/internal/testing/mock"
	"tokenwarden/pkg/oauth"
)

const flowRedirectURI = "http://127.0.0.1:3000/callback"

// approvingLauncher plays the user: it approves the consent screen on the
// mock server and returns what the browser would have been redirected with.
type approvingLauncher struct {
	server *mock.OAuthServer
	err    error
	calls  int
}

func (l *approvingLauncher) Launch(_ context.Context, authURL string) (*launcher.CallbackResult, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	code, state, err := l.server.Approve(authURL)
	if err != nil {
		return nil, err
	}
	return &launcher.CallbackResult{Code: code, State: state}, nil
}

func newFlowClient(t *testing.T, server *mock.OAuthServer, opts ...Option) (*Client, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	opts = append([]Option{WithStorage(store)}, opts...)
	client, err := NewClient(server.ProviderConfig(provider.Generic), flowRedirectURI, opts...)
	require.NoError(t, err)
	return client, store
}

func completeFlow(t *testing.T, client *Client, server *mock.OAuthServer) *oauth.TokenRecord {
	t.Helper()
	authURL, err := client.CreateAuthURL()
	require.NoError(t, err)
	code, state, err := server.Approve(authURL)
	require.NoError(t, err)
	record, err := client.Validate(context.Background(), code, state)
	require.NoError(t, err)
	return record
}

func TestFlow_PublicClient(t *testing.T) {
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
	defer server.Close()

	client, _ := newFlowClient(t, server)
	ctx := context.Background()

	record := completeFlow(t, client, server)
	assert.True(t, server.ValidateToken(record.AccessToken), "PKCE verifier matched the challenge")
	assert.NotEmpty(t, record.RefreshToken)
	assert.NotEmpty(t, record.IDToken)
	assert.Equal(t, "openid profile", record.Scope)
	assert.Equal(t, 1, server.ExchangeCount())

	token, err := client.GetAuthToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, record.AccessToken, token)
}

func TestFlow_TamperedVerifierRejected(t *testing.T) {
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
	defer server.Close()

	client, store := newFlowClient(t, server)

	authURL, err := client.CreateAuthURL()
	require.NoError(t, err)
	code, _, err := server.Approve(authURL)
	require.NoError(t, err)

	// A second client with its own session cannot redeem the intercepted code.
	attacker, _ := newFlowClient(t, server)
	attackerURL, err := attacker.CreateAuthURL()
	require.NoError(t, err)
	_, attackerState, err := server.Approve(attackerURL)
	require.NoError(t, err)

	_, err = attacker.Validate(context.Background(), code, attackerState)
	assert.True(t, errors.Is(err, oauth.ErrTokenExchangeFailed))

	stored, err := store.Get(context.Background(), oauth.StorageKey(string(provider.Generic)))
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestFlow_ConfidentialClient(t *testing.T) {
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc", ClientSecret: "s3cret"})
	defer server.Close()

	client, _ := newFlowClient(t, server)
	require.IsType(t, &sdkExchanger{}, client.exchanger)

	record := completeFlow(t, client, server)
	assert.True(t, server.ValidateToken(record.AccessToken))
	assert.NotZero(t, record.ExpiresAt)
}

func TestFlow_ConfidentialClientWrongSecret(t *testing.T) {
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc", ClientSecret: "s3cret"})
	defer server.Close()

	cfg := server.ProviderConfig(provider.Generic)
	cfg.ClientSecret = "wrong"
	client, err := NewClient(cfg, flowRedirectURI)
	require.NoError(t, err)

	authURL, err := client.CreateAuthURL()
	require.NoError(t, err)
	code, state, err := server.Approve(authURL)
	require.NoError(t, err)

	_, err = client.Validate(context.Background(), code, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oauth.ErrTokenExchangeFailed))

	var tokenErr *oauth.TokenError
	require.True(t, errors.As(err, &tokenErr))
	assert.Equal(t, "invalid_client", tokenErr.Code)
	assert.Equal(t, http.StatusUnauthorized, tokenErr.StatusCode)
}

func TestFlow_Refresh(t *testing.T) {
	tests := []struct {
		name         string
		clientSecret string
		rotate       bool
	}{
		{name: "public non-rotating", rotate: false},
		{name: "public rotating", rotate: true},
		{name: "confidential non-rotating", clientSecret: "s3cret", rotate: false},
		{name: "confidential rotating", clientSecret: "s3cret", rotate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := mock.NewMockClock(testNow)
			server := mock.NewOAuthServer(mock.OAuthServerConfig{
				ClientID:            "abc",
				ClientSecret:        tt.clientSecret,
				RotateRefreshTokens: tt.rotate,
				TokenLifetime:       10 * time.Minute,
				Clock:               clk,
			})
			defer server.Close()

			client, store := newFlowClient(t, server, WithClock(clk))
			ctx := context.Background()

			first := completeFlow(t, client, server)

			clk.Advance(9*time.Minute + 30*time.Second)

			token, err := client.GetAuthToken(ctx, false)
			require.NoError(t, err)
			assert.NotEqual(t, first.AccessToken, token)
			assert.True(t, server.ValidateToken(token))
			assert.Equal(t, 1, server.RefreshCount())

			stored, err := store.Get(ctx, oauth.StorageKey(string(provider.Generic)))
			require.NoError(t, err)
			assert.Equal(t, token, stored.AccessToken)
			if tt.rotate {
				assert.NotEqual(t, first.RefreshToken, stored.RefreshToken)
			} else {
				assert.Equal(t, first.RefreshToken, stored.RefreshToken)
			}
			assert.Equal(t, clk.Now().Add(10*time.Minute).UnixMilli(), stored.ExpiresAt)
		})
	}
}

func TestFlow_InvalidGrant(t *testing.T) {
	for _, secret := range []string{"", "s3cret"} {
		name := "public"
		if secret != "" {
			name = "confidential"
		}
		t.Run(name, func(t *testing.T) {
			clk := mock.NewMockClock(testNow)
			server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc", ClientSecret: secret, Clock: clk})
			defer server.Close()

			client, store := newFlowClient(t, server, WithClock(clk))
			ctx := context.Background()
			completeFlow(t, client, server)

			server.SetErrorSimulation(&mock.OAuthErrorSimulation{InvalidGrant: true})
			clk.Advance(2 * time.Hour)

			token, err := client.GetAuthToken(ctx, false)
			require.NoError(t, err)
			assert.Empty(t, token)

			stored, err := store.Get(ctx, oauth.StorageKey(string(provider.Generic)))
			require.NoError(t, err)
			assert.Nil(t, stored)
			assert.False(t, client.IsAuthenticated(ctx))
		})
	}
}

func TestFlow_TransientRefreshKeepsRecord(t *testing.T) {
	clk := mock.NewMockClock(testNow)
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc", ClientSecret: "s3cret", Clock: clk})
	defer server.Close()

	client, store := newFlowClient(t, server, WithClock(clk))
	ctx := context.Background()
	completeFlow(t, client, server)

	server.SetErrorSimulation(&mock.OAuthErrorSimulation{RefreshStatus: http.StatusServiceUnavailable})
	clk.Advance(2 * time.Hour)

	token, err := client.GetAuthToken(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, token)

	stored, err := store.Get(ctx, oauth.StorageKey(string(provider.Generic)))
	require.NoError(t, err)
	assert.NotNil(t, stored)

	server.SetErrorSimulation(nil)
	token, err = client.GetAuthToken(ctx, false)
	require.NoError(t, err)
	assert.NotEmpty(t, token, "a later read retries the refresh")
}

func TestFlow_SingleFlightRefresh(t *testing.T) {
	clk := mock.NewMockClock(testNow)
	server := mock.NewOAuthServer(mock.OAuthServerConfig{
		ClientID:       "abc",
		Clock:          clk,
		SimulateErrors: &mock.OAuthErrorSimulation{RefreshDelay: 200 * time.Millisecond},
	})
	defer server.Close()

	client, _ := newFlowClient(t, server, WithClock(clk))
	first := completeFlow(t, client, server)
	clk.Advance(2 * time.Hour)

	const readers = 10
	var wg sync.WaitGroup
	tokens := make([]string, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = client.GetAuthToken(context.Background(), false)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, server.RefreshCount(), "concurrent readers share one refresh")
	for _, token := range tokens {
		assert.NotEmpty(t, token)
		assert.NotEqual(t, first.AccessToken, token)
		assert.Equal(t, tokens[0], token)
	}
}

// staleReadStore hands out a saved snapshot on the next Get, the way a
// cache or a second process can still see the record from before a refresh.
type staleReadStore struct {
	*storage.MemoryStore
	mu    sync.Mutex
	stale *oauth.TokenRecord
}

func (s *staleReadStore) serveOnce(record *oauth.TokenRecord) {
	s.mu.Lock()
	s.stale = record
	s.mu.Unlock()
}

func (s *staleReadStore) Get(ctx context.Context, key string) (*oauth.TokenRecord, error) {
	s.mu.Lock()
	stale := s.stale
	s.stale = nil
	s.mu.Unlock()
	if stale != nil {
		return stale, nil
	}
	return s.MemoryStore.Get(ctx, key)
}

func TestFlow_StaleReaderKeepsRotatedToken(t *testing.T) {
	clk := mock.NewMockClock(testNow)
	server := mock.NewOAuthServer(mock.OAuthServerConfig{
		ClientID:            "abc",
		Clock:               clk,
		RotateRefreshTokens: true,
	})
	defer server.Close()

	store := &staleReadStore{MemoryStore: storage.NewMemoryStore()}
	client, err := NewClient(server.ProviderConfig(provider.Generic), flowRedirectURI,
		WithStorage(store), WithClock(clk))
	require.NoError(t, err)

	ctx := context.Background()
	first := completeFlow(t, client, server)
	clk.Advance(2 * time.Hour)

	renewed, err := client.GetAuthToken(ctx, false)
	require.NoError(t, err)
	require.NotEmpty(t, renewed)
	require.Equal(t, 1, server.RefreshCount())

	// This reader saw the record from before the rotation.
	store.serveOnce(first)
	token, err := client.GetAuthToken(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, renewed, token)
	assert.Equal(t, 1, server.RefreshCount(), "rotated refresh token is not redeemed again")

	stored, err := store.MemoryStore.Get(ctx, oauth.StorageKey(string(provider.Generic)))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, first.RefreshToken, stored.RefreshToken)
	assert.True(t, client.IsAuthenticated(ctx))
}

func TestFlow_CancelledReaderDoesNotFailSharedRefresh(t *testing.T) {
	clk := mock.NewMockClock(testNow)
	server := mock.NewOAuthServer(mock.OAuthServerConfig{
		ClientID:       "abc",
		Clock:          clk,
		SimulateErrors: &mock.OAuthErrorSimulation{RefreshDelay: 300 * time.Millisecond},
	})
	defer server.Close()

	client, _ := newFlowClient(t, server, WithClock(clk))
	first := completeFlow(t, client, server)
	clk.Advance(2 * time.Hour)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	var wg sync.WaitGroup
	var leaderToken, followerToken string
	wg.Add(1)
	go func() {
		defer wg.Done()
		leaderToken, _ = client.GetAuthToken(leaderCtx, false)
	}()
	require.Eventually(t, func() bool { return server.RefreshCount() == 1 }, time.Second, 5*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		followerToken, _ = client.GetAuthToken(context.Background(), false)
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	wg.Wait()

	assert.Empty(t, leaderToken, "cancelled reader gives up; its old token is past expiry")
	assert.NotEmpty(t, followerToken)
	assert.NotEqual(t, first.AccessToken, followerToken)
	assert.Equal(t, 1, server.RefreshCount())
	assert.True(t, client.IsAuthenticated(context.Background()))
}

func TestFlow_Deauthenticate(t *testing.T) {
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
	defer server.Close()

	client, _ := newFlowClient(t, server)
	ctx := context.Background()
	record := completeFlow(t, client, server)

	assert.True(t, client.Deauthenticate(ctx))
	assert.Equal(t, []string{record.RefreshToken}, server.RevokedTokens())
	assert.False(t, server.ValidateToken(record.AccessToken))
	assert.False(t, client.IsAuthenticated(ctx))

	server.SetErrorSimulation(&mock.OAuthErrorSimulation{RevokeStatus: http.StatusInternalServerError})
	completeFlow(t, client, server)
	assert.True(t, client.Deauthenticate(ctx))
	assert.False(t, client.IsAuthenticated(ctx))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("runs launcher flow", func(t *testing.T) {
		server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
		defer server.Close()

		l := &approvingLauncher{server: server}
		client, _ := newFlowClient(t, server, WithLauncher(l))

		ok, err := client.Authenticate(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, client.IsAuthenticated(ctx))

		ok, err = client.Authenticate(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, l.calls, "an existing token skips the launcher")
	})

	t.Run("without launcher", func(t *testing.T) {
		server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
		defer server.Close()

		client, _ := newFlowClient(t, server)

		ok, err := client.Authenticate(ctx)
		assert.False(t, ok)

		var interaction *InteractionRequiredError
		require.True(t, errors.As(err, &interaction))
		assert.True(t, client.Context().Pending)

		// The caller can complete the flow out-of-band.
		code, state, err := server.Approve(interaction.AuthURL)
		require.NoError(t, err)
		_, err = client.Validate(ctx, code, state)
		require.NoError(t, err)
		assert.True(t, client.IsAuthenticated(ctx))
	})

	t.Run("launcher failure", func(t *testing.T) {
		server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
		defer server.Close()

		denied := &launcher.AuthorizationError{Code: "access_denied"}
		client, _ := newFlowClient(t, server, WithLauncher(&approvingLauncher{server: server, err: denied}))

		ok, err := client.Authenticate(ctx)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, denied))
		assert.False(t, client.Context().Pending)
	})

	t.Run("exchange failure", func(t *testing.T) {
		server := mock.NewOAuthServer(mock.OAuthServerConfig{
			ClientID:       "abc",
			SimulateErrors: &mock.OAuthErrorSimulation{TokenEndpointStatus: http.StatusInternalServerError},
		})
		defer server.Close()

		client, _ := newFlowClient(t, server, WithLauncher(&approvingLauncher{server: server}))

		ok, err := client.Authenticate(ctx)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, oauth.ErrTokenExchangeFailed))
	})
}

func TestTokenSource(t *testing.T) {
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc"})
	defer server.Close()

	client, _ := newFlowClient(t, server)
	ctx := context.Background()

	_, err := client.TokenSource(ctx).Token()
	assert.True(t, errors.Is(err, oauth.ErrNoToken))

	record := completeFlow(t, client, server)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+record.AccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	httpClient := oauth2.NewClient(ctx, client.TokenSource(ctx))
	resp, err := httpClient.Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	token, err := client.TokenSource(ctx).Token()
	require.NoError(t, err)
	assert.Equal(t, record.RefreshToken, token.RefreshToken)
	assert.Equal(t, record.Expiry(), token.Expiry)
	assert.Equal(t, record.IDToken, token.Extra("id_token"))
}

func TestFlow_OmittedExpiresIn(t *testing.T) {
	server := mock.NewOAuthServer(mock.OAuthServerConfig{ClientID: "abc", OmitExpiresIn: true})
	defer server.Close()

	client, _ := newFlowClient(t, server)
	record := completeFlow(t, client, server)
	assert.Zero(t, record.ExpiresAt)

	// Unknown lifetime with a refresh token: every read refreshes.
	token, err := client.GetAuthToken(context.Background(), false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, server.RefreshCount())
}
