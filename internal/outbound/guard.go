// Package outbound guards server-initiated HTTP requests against SSRF.
//
// URLs are checked before a request is built, and every connection is checked
// again at dial time against the resolved address, so a hostname that
// re-resolves to an internal address is still refused.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrInvalidURL is returned when URL parsing fails.
	ErrInvalidURL = errors.New("invalid URL format")
	// ErrInvalidScheme is returned for anything other than http or https.
	ErrInvalidScheme = errors.New("only http and https URLs are allowed")
	// ErrEmptyHost is returned when the URL has no host.
	ErrEmptyHost = errors.New("URL must have a host")
	// ErrLocalhostBlocked is returned for localhost-style hostnames.
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	// ErrBlockedAddress is returned when the host resolves to an internal range.
	ErrBlockedAddress = errors.New("private, loopback and link-local addresses are not allowed")
	// ErrPortNotAllowed is returned for ports outside the allow list.
	ErrPortNotAllowed = errors.New("port not allowed")
)

// BlockedCIDRs lists ranges that outbound requests may never reach.
var BlockedCIDRs = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10", // carrier-grade NAT
	"127.0.0.0/8",
	"169.254.0.0/16", // link-local, cloud metadata
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

var blockedNetworks []*net.IPNet

func init() {
	for _, cidr := range BlockedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			blockedNetworks = append(blockedNetworks, network)
		}
	}
}

// DefaultPorts are always allowed.
var DefaultPorts = []int{80, 443}

// Guard decides which destinations outbound requests may reach.
type Guard struct {
	ports        map[int]bool
	allowPrivate bool
	resolver     *net.Resolver
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithAllowedPorts adds ports to the allow list.
func WithAllowedPorts(ports ...int) GuardOption {
	return func(g *Guard) {
		for _, p := range ports {
			g.ports[p] = true
		}
	}
}

// WithPrivateNetworks disables address-range blocking. Only for tests that
// target httptest servers on loopback.
func WithPrivateNetworks() GuardOption {
	return func(g *Guard) {
		g.allowPrivate = true
	}
}

// NewGuard returns a guard that allows ports 80 and 443 plus any extras.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		ports:    make(map[int]bool),
		resolver: net.DefaultResolver,
	}
	for _, p := range DefaultPorts {
		g.ports[p] = true
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateURL parses raw and checks scheme, host, port and resolved
// addresses. Resolution failures are left to surface when dialing.
func (g *Guard) ValidateURL(ctx context.Context, raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidURL
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrInvalidScheme
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, ErrEmptyHost
	}

	if err := g.checkPort(effectivePort(parsed)); err != nil {
		return nil, err
	}

	if g.allowPrivate {
		return parsed, nil
	}

	if isLocalhostHostname(host) {
		return nil, ErrLocalhostBlocked
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, ErrBlockedAddress
		}
		return parsed, nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return parsed, nil
	}
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return nil, ErrBlockedAddress
		}
	}

	return parsed, nil
}

// Control is a net.Dialer control hook. It runs after name resolution with
// the concrete address being connected to.
func (g *Guard) Control(_, address string, _ syscall.RawConn) error {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("outbound dial %q: %w", address, ErrInvalidURL)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("outbound dial %q: %w", address, ErrPortNotAllowed)
	}
	if err := g.checkPort(port); err != nil {
		return err
	}

	if g.allowPrivate {
		return nil
	}

	ip := net.ParseIP(host)
	if ip == nil || isBlockedIP(ip) {
		return fmt.Errorf("outbound dial %s: %w", host, ErrBlockedAddress)
	}
	return nil
}

func (g *Guard) checkPort(port int) error {
	if !g.ports[port] {
		return fmt.Errorf("%w: %d", ErrPortNotAllowed, port)
	}
	return nil
}

func effectivePort(u *url.URL) int {
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return -1
		}
		return n
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

func isLocalhostHostname(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal")
}

func isBlockedIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ExtractHost returns the host of a URL for logging. Full URLs may carry
// secrets in the path or query.
func ExtractHost(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "(invalid)"
	}
	return parsed.Host
}
