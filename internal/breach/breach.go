// Package breach checks passwords against the Pwned Passwords range API
// using k-anonymity: only the first five hex characters of the SHA-1 hash
// leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // mandated by the range API
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Pwned Passwords endpoint.
	DefaultBaseURL = "https://api.pwnedpasswords.com"
	userAgent      = "API-Marketplace-Playground/1.0"
	prefixLen      = 5
	defaultTimeout = 10 * time.Second
)

var (
	// ErrMissingPassword is returned for an empty password.
	ErrMissingPassword = errors.New("missing required parameter: password")
)

// UpstreamError is a non-2xx, non-404 response from the range API.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Pwned Passwords API returned status %d", e.Status)
}

// Result is the outcome of a check.
type Result struct {
	Compromised bool
	Count       int
}

// Checker queries the range API.
type Checker struct {
	baseURL string
	client  *http.Client
}

// New creates a Checker. An empty baseURL uses DefaultBaseURL and a nil
// client gets a plain client with a 10s timeout.
func New(baseURL string, client *http.Client) *Checker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Checker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// HashPrefix returns the uppercase SHA-1 hex of password split into the
// five-character prefix sent upstream and the suffix matched locally.
func HashPrefix(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password)) //nolint:gosec
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	return h[:prefixLen], h[prefixLen:]
}

// Check reports whether password appears in known breaches.
func (c *Checker) Check(ctx context.Context, password string) (*Result, error) {
	if password == "" {
		return nil, ErrMissingPassword
	}

	prefix, suffix := HashPrefix(password)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("build range request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("range request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Result{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	count, found, err := findSuffix(bufio.NewScanner(resp.Body), suffix)
	if err != nil {
		return nil, fmt.Errorf("read range response: %w", err)
	}
	return &Result{Compromised: found, Count: count}, nil
}

// findSuffix scans SUFFIX:COUNT lines for suffix. An unreadable count on a
// matching line reports zero.
func findSuffix(sc *bufio.Scanner, suffix string) (int, bool, error) {
	for sc.Scan() {
		hashSuffix, countStr, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		count, _ := strconv.Atoi(strings.TrimSpace(countStr))
		return count, true, nil
	}
	return 0, false, sc.Err()
}
