package launcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T) *CallbackServer {
	t.Helper()

	server := NewCallbackServer(0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	t.Cleanup(server.Stop)

	return server
}

func TestCallbackServer_Listen(t *testing.T) {
	server := NewCallbackServer(0)
	if err := server.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer server.Stop()

	if server.Port() == 0 {
		t.Error("expected non-zero port after listen")
	}
	if !strings.HasPrefix(server.RedirectURI(), "http://127.0.0.1:") || !strings.HasSuffix(server.RedirectURI(), "/callback") {
		t.Errorf("unexpected redirect URI: %s", server.RedirectURI())
	}

	// A second listener on the same port must fail
	other := NewCallbackServer(server.Port())
	if err := other.Listen(); err == nil {
		other.Stop()
		t.Error("expected error binding an occupied port")
	}
}

func TestCallbackServer_Success(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get(server.RedirectURI() + "?code=test-code&state=test-state")
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Authorization complete") {
		t.Error("expected success page")
	}

	securityHeaders := []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy", "Cache-Control"}
	for _, h := range securityHeaders {
		if resp.Header.Get(h) == "" {
			t.Errorf("expected %s header to be set", h)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := server.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}
	if result.Code != "test-code" || result.State != "test-state" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.IsError() {
		t.Error("expected no error")
	}
}

func TestCallbackServer_ProviderError(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get(server.RedirectURI() + "?error=access_denied&error_description=%3Cscript%3Ebad%3C%2Fscript%3E")
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "access_denied") {
		t.Error("expected error code in page")
	}
	if strings.Contains(string(body), "<script>") {
		t.Error("error description must be HTML-escaped")
	}

	result, err := server.WaitForCallback(context.Background())
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}
	if !result.IsError() || result.Error != "access_denied" {
		t.Errorf("expected access_denied result, got %+v", result)
	}
}

func TestCallbackServer_SingleUse(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get(server.RedirectURI() + "?code=first&state=s")
	if err != nil {
		t.Fatalf("first callback failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(server.RedirectURI() + "?code=second&state=s")
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for second callback, got %d", resp.StatusCode)
		}
	}

	result, _ := server.WaitForCallback(context.Background())
	if result.Code != "first" {
		t.Errorf("expected first callback to win, got %q", result.Code)
	}
}

func TestCallbackServer_WaitCancelled(t *testing.T) {
	server := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := server.WaitForCallback(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestCallbackServer_IgnoresBareRequests(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get(server.RedirectURI())
	if err != nil {
		t.Fatalf("bare request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a request without code, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.RedirectURI()+"?code=c&state=s", "text/plain", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", resp.StatusCode)
	}

	// The real redirect still gets through.
	resp, err = http.Get(server.RedirectURI() + "?code=real&state=s")
	if err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := server.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}
	if result.Code != "real" {
		t.Errorf("expected code real, got %q", result.Code)
	}
}
