package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook/urlguard"
)

// ClientFactory builds the HTTP client used for a single attempt
type ClientFactory func(target urlguard.Target, timeout time.Duration) *http.Client

/* PinnedClient dials only the addresses vetted by the guard
 * The hostname is never resolved again, TLS still verifies and sends SNI
 * for the original host, proxies are bypassed and redirects are returned
 * as-is instead of followed
 */
func PinnedClient(target urlguard.Target, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			if len(target.Addrs) == 0 {
				return nil, errors.New("no vetted address to dial")
			}
			var errs []error
			for _, addr := range target.Addrs {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(addr.String(), target.Port))
				if err == nil {
					return conn, nil
				}
				errs = append(errs, err)
			}
			return nil, fmt.Errorf("dialing %s: %w", target.Host, errors.Join(errs...))
		},
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
