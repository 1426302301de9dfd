package launcher

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultCallbackPort is used when the configuration does not set one.
	DefaultCallbackPort = 3000

	// CallbackPath is the path the provider redirects to.
	CallbackPath = "/callback"

	loopbackHost    = "127.0.0.1"
	shutdownTimeout = 5 * time.Second
)

var (
	//go:embed templates/callback_success.html
	callbackSuccessHTML string
	//go:embed templates/callback_error.html
	callbackErrorHTML string

	successTemplate = template.Must(template.New("success").Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// CallbackServer receives one OAuth redirect on the loopback interface.
type CallbackServer struct {
	port     int
	ln       net.Listener
	srv      *http.Server
	results  chan *CallbackResult // capacity 1; written at most once
	failures chan error
	handled  atomic.Bool
	stopOnce sync.Once
}

// NewCallbackServer returns an unbound server for 127.0.0.1:port. Port 0
// is resolved to a free port by Listen.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{
		port:     port,
		results:  make(chan *CallbackResult, 1),
		failures: make(chan error, 1),
	}
}

// Listen binds the loopback port; afterwards Port and RedirectURI are
// final. Calling it again is a no-op.
func (s *CallbackServer) Listen() error {
	if s.ln != nil {
		return nil
	}
	addr := net.JoinHostPort(loopbackHost, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind callback listener on %s: %w", addr, err)
	}
	s.ln = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	return nil
}

// Start serves CallbackPath in the background until ctx ends or Stop is
// called, binding first if needed.
func (s *CallbackServer) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go s.serve()
	context.AfterFunc(ctx, s.Stop)
	return nil
}

func (s *CallbackServer) serve() {
	err := s.srv.Serve(s.ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	select {
	case s.failures <- err:
	default:
	}
}

// WaitForCallback blocks until a redirect arrives, the server fails or ctx
// ends.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case res := <-s.results:
		return res, nil
	case err := <-s.failures:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// callbackPage is rendered into the HTML templates.
type callbackPage struct {
	Error       string
	Description string
}

// handleCallback accepts the first request that carries a code or an error.
// Requests with neither (prefetches, a reload of the bare URL) are rejected
// without using up the server.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w.Header())

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
	if result.Code == "" && !result.IsError() {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	if !s.handled.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	page, tmpl := callbackPage{}, successTemplate
	if result.IsError() {
		page = callbackPage{Error: result.Error, Description: result.ErrorDescription}
		tmpl = errorTemplate
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, page); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	s.results <- result
}

func setSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
}

// Stop shuts the server down. Repeated calls are no-ops.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = s.srv.Shutdown(ctx)
		}
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
}

// RedirectURI returns the redirect URI to register with the provider.
func (s *CallbackServer) RedirectURI() string {
	return LoopbackRedirectURI(s.port)
}

// LoopbackRedirectURI returns the redirect URI a callback server on port
// would serve.
func LoopbackRedirectURI(port int) string {
	return "http://" + net.JoinHostPort(loopbackHost, strconv.Itoa(port)) + CallbackPath
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}
