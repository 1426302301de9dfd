package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// RoundTripper adapts a Doer to http.RoundTripper so libraries that expect
// an *http.Client (golang.org/x/oauth2) send their requests through it.
func RoundTripper(doer Doer) http.RoundTripper {
	return &doerRoundTripper{doer: doer}
}

// HTTPClient returns an *http.Client whose requests go through doer. An
// *HTTP doer hands back its own client.
func HTTPClient(doer Doer) *http.Client {
	if h, ok := doer.(*HTTP); ok {
		return h.client
	}
	return &http.Client{Transport: RoundTripper(doer)}
}

type doerRoundTripper struct {
	doer Doer
}

func (rt *doerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = data
	}

	resp, err := rt.doer.Do(req.Context(), &Request{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}, nil
}
