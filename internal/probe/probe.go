package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"blockcheck/internal/models"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// MaxRedirects is the redirect budget of one probe, matching browsers.
const MaxRedirects = 20

var errTooManyRedirects = errors.New("stopped after too many redirects")

// Prober classifies whether a domain can be reached from this host.
// Implementations never fail: every failure is reported as models.Blocked.
type Prober interface {
	Probe(ctx context.Context, domain string) models.Classification
}

// Func adapts a plain function to the Prober interface.
type Func func(ctx context.Context, domain string) models.Classification

// Probe calls f(ctx, domain).
func (f Func) Probe(ctx context.Context, domain string) models.Classification {
	return f(ctx, domain)
}

// Options configures an HTTPProber.
type Options struct {
	Timeout time.Duration
	// Client overrides the default client. Its redirect policy and timeout
	// are replaced.
	Client *http.Client
}

// HTTPProber issues one HEAD request to https://<domain> and reports whether
// the exchange completed. Redirects are followed and the deadline covers the
// whole chain, so a redirect into an unreachable host is Blocked. Status
// codes and bodies are ignored.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProber builds a prober with a fresh-connection transport.
func NewHTTPProber(opts Options) *HTTPProber {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var client http.Client
	if opts.Client != nil {
		client = *opts.Client
	} else {
		client.Transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: timeout,
			}).DialContext,
			TLSHandshakeTimeout: timeout,
			DisableKeepAlives:   true,
			DisableCompression:  true,
		}
	}
	client.Timeout = 0
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= MaxRedirects {
			return errTooManyRedirects
		}
		return nil
	}

	return &HTTPProber{client: &client, timeout: timeout}
}

// Timeout returns the per-probe deadline.
func (p *HTTPProber) Timeout() time.Duration {
	return p.timeout
}

// Probe performs exactly one attempt against the domain.
func (p *HTTPProber) Probe(ctx context.Context, domain string) models.Classification {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://"+domain, nil)
	if err != nil {
		return models.Blocked
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Blocked
	}
	_ = resp.Body.Close()
	return models.Reachable
}
