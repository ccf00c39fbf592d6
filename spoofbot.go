// Package spoofbot provides client-side HTTP interception caches for
// browser-emulating clients. Two http.RoundTripper implementations share one
// external contract: CacheTransport records and serves responses through a
// pluggable payload store (filesystem, SQLite, PostgreSQL, DynamoDB), and
// ReplayTransport serves a previously recorded transcript archive under a
// configurable best-match policy.
package spoofbot

import (
	"context"
	"net/http"
)

// Browser produces requests carrying the default headers of an emulated
// browser. The cache layer only consumes the resulting requests; user agent
// and header table generation live behind this interface.
type Browser interface {
	// NewRequest builds a request with the browser's default headers set.
	NewRequest(ctx context.Context, method, url string) (*http.Request, error)
	// HeaderOrder returns the wire order the browser emits headers in.
	HeaderOrder() []string
}

// StaticBrowser is a Browser with a fixed user agent and header table.
type StaticBrowser struct {
	UserAgent string
	Headers   http.Header
	Order     []string
}

func (b StaticBrowser) NewRequest(ctx context.Context, method, url string) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	for name, values := range b.Headers {
		for _, value := range values {
			r.Header.Add(name, value)
		}
	}
	if b.UserAgent != "" {
		r.Header.Set("User-Agent", b.UserAgent)
	}
	return r, nil
}

func (b StaticBrowser) HeaderOrder() []string {
	return b.Order
}
