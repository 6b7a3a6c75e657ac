package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// maxFeedBytes caps a downloaded feed.
const maxFeedBytes = 4 << 20

// maxRedirects matches net/http's own default limit.
const maxRedirects = 10

var (
	// ErrUnsupportedURL is returned for feed URLs that are not http or https.
	ErrUnsupportedURL = errors.New("calendar URL must be http or https")

	// ErrPrivateHost is returned when a feed URL, a redirect or a resolved
	// address points at a loopback, private or link-local host.
	ErrPrivateHost = errors.New("calendar URL must not point at a private address")
)

// Fetcher downloads published calendar feeds.
type Fetcher struct {
	httpClient   *http.Client
	allowPrivate bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// AllowPrivateHosts lets the fetcher reach loopback and private networks.
// Only for deployments whose feeds live on an internal network.
func AllowPrivateHosts(allow bool) FetcherOption {
	return func(f *Fetcher) { f.allowPrivate = allow }
}

// NewFetcher creates a fetcher whose requests give up after timeout.
// Feeds on loopback, private and link-local addresses are refused unless
// AllowPrivateHosts is given.
func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: timeout, Control: f.checkDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	f.httpClient = &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: f.checkRedirect,
	}
	return f
}

// Fetch downloads the feed at rawURL and parses its events.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]Event, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrUnsupportedURL
	}
	if err := f.checkURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building calendar request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrPrivateHost) || errors.Is(err, ErrUnsupportedURL) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	return Parse(io.LimitReader(resp.Body, maxFeedBytes))
}

// checkURL rejects non-http schemes and, unless private hosts are allowed,
// hosts that are obviously internal. Names that only resolve to internal
// addresses are caught again at dial time.
func (f *Fetcher) checkURL(u *url.URL) error {
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return ErrUnsupportedURL
	}
	if f.allowPrivate {
		return nil
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return ErrPrivateHost
	}
	if ip, err := netip.ParseAddr(host); err == nil && isPrivateAddr(ip) {
		return ErrPrivateHost
	}
	return nil
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return f.checkURL(req.URL)
}

// checkDial runs after DNS resolution, so it sees the address actually
// being connected to.
func (f *Fetcher) checkDial(network, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("calendar dial %s: %w", address, err)
	}
	if isPrivateAddr(addrPort.Addr()) {
		return ErrPrivateHost
	}
	return nil
}

func isPrivateAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

// FilterByRange returns events that overlap [from, to). A zero bound is
// open. Events without an end are treated as instants. Unreadable events
// are always kept so they can be reported.
func FilterByRange(events []Event, from, to time.Time) []Event {
	var filtered []Event
	for _, e := range events {
		if e.Err != nil {
			filtered = append(filtered, e)
			continue
		}
		end := e.End
		if end.IsZero() {
			end = e.Start
		}
		if !to.IsZero() && !e.Start.Before(to) {
			continue
		}
		if !from.IsZero() && end.Before(from) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}
