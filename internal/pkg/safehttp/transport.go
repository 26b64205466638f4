// Package safehttp builds the outbound HTTP client used for vendor calls.
package safehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrPrivateAddress is wrapped by dial errors for refused destinations.
var ErrPrivateAddress = errors.New("access to private address denied")

// SafeTransport rejects connections to private or loopback IP ranges to reduce SSRF risk.
var SafeTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	DialContext:           guardedDial,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

func guardedDial(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
	}

	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
	}

	return conn, nil
}

// NewClient returns the client every vendor adapter shares. Requests are
// traced with otelhttp; blockPrivate routes them through SafeTransport.
func NewClient(timeout time.Duration, blockPrivate bool) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if blockPrivate {
		base = SafeTransport
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(base),
	}
}
