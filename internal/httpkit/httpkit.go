// Package httpkit builds the outbound HTTP clients used by the LLM
// adapter and the literature fetcher. It keeps dial, TLS, and header
// timeouts explicit and injects a consistent User-Agent, so no package
// constructs a bare http.Client with unbounded waits.
package httpkit

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Dizzy12138/bio-agent/internal/buildinfo"
)

const (
	dialTimeout          = 10 * time.Second
	tlsHandshakeTimeout  = 10 * time.Second
	responseHeaderWindow = 30 * time.Second
	idleConnTimeout      = 90 * time.Second
)

// NewClient returns an *http.Client with pooled connections, explicit
// transport timeouts, and User-Agent injection. timeout bounds the
// whole request; zero disables the overall bound (the transport
// timeouts still apply), which is what long LLM calls need.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderWindow,
		IdleConnTimeout:       idleConnTimeout,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: transport},
	}
}

// userAgentTransport sets the User-Agent header unless the caller
// already did.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// Clone per the RoundTripper contract: never mutate the original.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}
	return t.base.RoundTrip(req)
}

// DrainAndClose reads up to limit bytes from rc and closes it, so the
// underlying connection returns to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody reads up to limit bytes for an error message, then
// drains and closes the remainder. Returns "" for a nil body.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	DrainAndClose(rc, 1024)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}
