// Package webhook delivers signed content-update notifications to external
// endpoints without letting those endpoints steer requests at internal
// infrastructure.
//
// Each target's hostname is resolved exactly once, the first publicly
// routable address is pinned into the dialer, and redirects are not
// followed. The connection still carries the original Host header and TLS
// server name, so virtual hosting and certificate validation behave
// normally.
package webhook

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/kestrelworks/inkwell/internal/cryptoutil"
	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/netsafe"
	"github.com/kestrelworks/inkwell/internal/xerrors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the payload, prefixed
// with "sha256=".
const SignatureHeader = "X-Inkwell-Signature"

// DefaultTimeout bounds a single delivery attempt end to end.
const DefaultTimeout = 10 * time.Second

// Target is one webhook destination. Secret may be empty, in which case
// the request is sent unsigned.
type Target struct {
	URL    string
	Secret string
}

// Dispatcher fires notifications at a fixed set of targets. Deliveries are
// best-effort: one attempt per target per event, failures logged and
// dropped.
type Dispatcher struct {
	targets []Target
	timeout time.Duration
	logger  log.Logger

	// addrOK classifies resolved addresses; swapped in tests so local
	// listeners can receive deliveries.
	addrOK func(netip.Addr) bool

	// onResult, when set, observes each delivery outcome.
	onResult func(target string, err error)

	resolver *net.Resolver
}

type Option func(*Dispatcher)

// WithTimeout overrides the per-delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(w *Dispatcher) { w.timeout = d }
}

// WithResultHook registers a callback invoked once per target per Fire.
func WithResultHook(fn func(target string, err error)) Option {
	return func(w *Dispatcher) { w.onResult = fn }
}

func NewDispatcher(targets []Target, logger log.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	d := &Dispatcher{
		targets:  targets,
		timeout:  DefaultTimeout,
		logger:   logger,
		addrOK:   netsafe.IsSafe,
		resolver: net.DefaultResolver,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Targets reports how many destinations are configured.
func (d *Dispatcher) Targets() int { return len(d.targets) }

// Fire delivers payload to every target concurrently and returns when all
// attempts have finished. A failed target never affects the others.
func (d *Dispatcher) Fire(ctx context.Context, payload []byte) {
	if len(d.targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, t := range d.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			err := d.deliver(ctx, t, payload)
			if err != nil {
				d.logger.Warn(ctx, "webhook delivery failed", "target", t.URL, "err", err.Error())
			} else {
				d.logger.Info(ctx, "webhook delivered", "target", t.URL)
			}
			if d.onResult != nil {
				d.onResult(t.URL, err)
			}
		}(t)
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, t Target, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	u, err := url.Parse(t.URL)
	if err != nil {
		return xerrors.Wrap(err, "parse webhook url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return xerrors.Newf("unsupported webhook scheme %q", u.Scheme)
	}

	addr, err := d.resolveSafe(ctx, u.Hostname())
	if err != nil {
		return err
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	pinned := net.JoinHostPort(addr.String(), port)

	client := &http.Client{
		Transport: &http.Transport{
			// every connection for this request goes to the address we
			// already vetted, regardless of what the dialer is asked for
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, network, pinned)
			},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: d.timeout,
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(payload))
	if err != nil {
		return xerrors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	if t.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+cryptoutil.HMACSHA256Hex([]byte(t.Secret), payload))
	}

	resp, err := client.Do(req)
	if err != nil {
		return xerrors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return xerrors.Newf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// resolveSafe resolves host once and returns the first publicly routable
// address. Literal IPs skip DNS but still face the same classifier.
func (d *Dispatcher) resolveSafe(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		if !d.addrOK(addr) {
			return netip.Addr{}, xerrors.Newf("webhook address %s is not publicly routable", addr)
		}
		return addr, nil
	}

	addrs, err := d.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.Addr{}, xerrors.Wrapf(err, "resolve webhook host %s", host)
	}
	for _, addr := range addrs {
		if d.addrOK(addr) {
			return addr.Unmap(), nil
		}
	}
	return netip.Addr{}, xerrors.Newf("webhook host %s resolves to no publicly routable address", host)
}
