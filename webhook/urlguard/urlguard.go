package urlguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

/* Guard keeps webhook URLs out of internal address space
 * It runs once when a webhook is registered and again right before every
 * delivery attempt, resolving DNS each time so a record repointed after
 * registration is caught
 */

var (
	ErrInvalidURL         = errors.New("invalid webhook url")
	ErrSchemeNotAllowed   = errors.New("url scheme not allowed")
	ErrUnresolvable       = errors.New("hostname could not be resolved")
	ErrForbiddenAddress   = errors.New("url resolves to a forbidden address")
	ErrDeliveryValidation = errors.New("delivery-time url validation failed")
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Target is a vetted destination: the parsed URL plus the addresses it may be dialed on
type Target struct {
	URL   *url.URL
	Host  string
	Port  string
	Addrs []netip.Addr
}

// Guard validates webhook URLs against disallowed address classes
type Guard struct {
	resolver Resolver
	schemes  map[string]bool
}

// Option configures a Guard
type Option func(*Guard)

// WithResolver replaces the system resolver
func WithResolver(r Resolver) Option {
	return func(g *Guard) {
		g.resolver = r
	}
}

// WithAllowedSchemes replaces the default ["https"]
func WithAllowedSchemes(schemes ...string) Option {
	return func(g *Guard) {
		g.schemes = make(map[string]bool, len(schemes))
		for _, s := range schemes {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				g.schemes[s] = true
			}
		}
	}
}

// New creates a Guard using the system resolver and https only
func New(opts ...Option) *Guard {
	g := &Guard{
		resolver: net.DefaultResolver,
		schemes:  map[string]bool{"https": true},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateOnCreate checks a URL at registration time
func (g *Guard) ValidateOnCreate(ctx context.Context, rawURL string) error {
	_, err := g.check(ctx, rawURL)
	return err
}

/* ValidateAtDelivery repeats every check immediately before an attempt and
 * returns the vetted addresses, which the caller must dial directly instead
 * of resolving the hostname a second time
 */
func (g *Guard) ValidateAtDelivery(ctx context.Context, rawURL string) (Target, error) {
	target, err := g.check(ctx, rawURL)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrDeliveryValidation, err)
	}
	return target, nil
}

func (g *Guard) check(ctx context.Context, rawURL string) (Target, error) {
	u, err := g.parse(rawURL)
	if err != nil {
		return Target{}, err
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = defaultPort(u.Scheme)
	}

	addrs, err := g.resolve(ctx, host)
	if err != nil {
		return Target{}, err
	}

	for _, addr := range addrs {
		if reason := Forbidden(addr); reason != "" {
			return Target{}, fmt.Errorf("%w: %s is %s", ErrForbiddenAddress, addr, reason)
		}
	}

	return Target{URL: u, Host: host, Port: port, Addrs: addrs}, nil
}

func (g *Guard) parse(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is empty", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: url must be absolute", ErrInvalidURL)
	}
	if !g.schemes[strings.ToLower(u.Scheme)] {
		return nil, fmt.Errorf("%w: %s", ErrSchemeNotAllowed, u.Scheme)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in url are not allowed", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	return u, nil
}

func (g *Guard) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr.Unmap()}, nil
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvable, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrUnresolvable, host)
	}

	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Unmap())
	}
	return out, nil
}

func defaultPort(scheme string) string {
	switch strings.ToLower(scheme) {
	case "http":
		return "80"
	default:
		return "443"
	}
}
