package page

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const dialTimeout = 10 * time.Second

// ErrNonPublicAddress is returned for URLs that point into loopback, private,
// link-local or otherwise non-routable networks.
var ErrNonPublicAddress = errors.New("address is not public")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// CheckPublicURL fails with ErrNonPublicAddress when the host of rawURL is,
// or resolves to, a non-public address.
func CheckPublicURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		return errors.New("URL has no host")
	}

	if addr, parseErr := netip.ParseAddr(host); parseErr == nil {
		return checkAddr(addr)
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}

	for _, addr := range addrs {
		if err = checkAddr(addr); err != nil {
			return err
		}
	}

	return nil
}

// NewPublicClient returns an HTTP client that refuses to connect to
// non-public addresses, including after redirects and DNS changes.
func NewPublicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: dialTimeout,
		Control: func(_ string, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}

			addr, err := netip.ParseAddr(host)
			if err != nil {
				return err
			}

			return checkAddr(addr)
		},
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{Timeout: timeout, Transport: transport}
}

func checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()

	if !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() ||
		sharedAddressSpace.Contains(addr) {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, addr)
	}

	return nil
}
