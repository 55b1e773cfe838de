package outbound

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
)

// ErrTooManyRedirects is returned once a client exceeds its redirect budget.
var ErrTooManyRedirects = errors.New("too many redirects")

// NewClient returns an HTTP client whose every connection passes through the
// guard. maxRedirects of zero returns redirect responses unfollowed; a
// positive value follows at most that many, re-validating each hop.
func (g *Guard) NewClient(timeout time.Duration, maxRedirects int) *http.Client {
	dialer := &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: 30 * time.Second,
		Control:   g.Control,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: g.redirectPolicy(maxRedirects),
	}
}

func (g *Guard) redirectPolicy(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if maxRedirects <= 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
		}
		ctx := req.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if _, err := g.ValidateURL(ctx, req.URL.String()); err != nil {
			return fmt.Errorf("redirect to %s: %w", req.URL.Host, err)
		}
		return nil
	}
}

// IsGuardError reports whether err came from a guard rejection.
func IsGuardError(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidScheme) ||
		errors.Is(err, ErrEmptyHost) ||
		errors.Is(err, ErrLocalhostBlocked) ||
		errors.Is(err, ErrBlockedAddress) ||
		errors.Is(err, ErrPortNotAllowed) ||
		errors.Is(err, ErrTooManyRedirects)
}
