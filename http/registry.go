// Package http provides the crate registry client.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fwojciec/cratedoc"
)

// Registry client defaults.
const (
	DefaultBaseURL         = "https://crates.io"
	DefaultUserAgent       = "cratedoc (https://github.com/fwojciec/cratedoc)"
	DefaultDownloadTimeout = 2 * time.Minute
	DefaultRequestsPerSec  = 1.0
	MaxRedirects           = 10
)

// Ensure RegistryClient implements cratedoc.RegistryClient at compile time.
var _ cratedoc.RegistryClient = (*RegistryClient)(nil)

// RegistryClient downloads crate archives from a crates.io compatible
// registry.
type RegistryClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
	timeout   time.Duration
	limiter   *HostLimiter
}

// Option configures a RegistryClient.
type Option func(*RegistryClient)

// WithBaseURL sets the registry root. Defaults to DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *RegistryClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *RegistryClient) {
		c.userAgent = ua
	}
}

// WithTimeout bounds a whole download, including the body.
func WithTimeout(d time.Duration) Option {
	return func(c *RegistryClient) {
		c.timeout = d
	}
}

// WithRateLimit sets the per-host request rate. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *RegistryClient) {
		c.limiter = NewHostLimiter(rps)
	}
}

// NewRegistryClient creates a new RegistryClient.
func NewRegistryClient(opts ...Option) *RegistryClient {
	c := &RegistryClient{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		timeout:   DefaultDownloadTimeout,
		limiter:   NewHostLimiter(DefaultRequestsPerSec),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.client = &http.Client{
		Timeout: c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			req.Header.Set("User-Agent", c.userAgent)
			return c.limiter.Wait(req.Context(), req.URL.Host)
		},
	}
	return c
}

// Download implements cratedoc.RegistryClient.
func (c *RegistryClient) Download(ctx context.Context, name, version string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/api/v1/crates/%s/%s/download", c.baseURL, url.PathEscape(name), url.PathEscape(version))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EINVALID, err, "invalid registry URL %s", u)
	}
	req.Header.Set("User-Agent", c.userAgent)

	if err := c.limiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, cratedoc.WrapError(cratedoc.ENETWORK, err, "failed to download %s@%s: %s", name, version, transportMessage(err))
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	resp.Body.Close()
	return nil, statusError(resp.StatusCode, name, version)
}

// statusError maps a non-200 response to the error taxonomy.
func statusError(status int, name, version string) error {
	switch {
	case status == http.StatusNotFound:
		return cratedoc.Errorf(cratedoc.ENOTFOUND, "%s@%s is not published on the registry", name, version)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return cratedoc.Errorf(cratedoc.ENETWORK, "registry returned HTTP %d for %s@%s", status, name, version)
	default:
		e := cratedoc.Errorf(cratedoc.ENETWORK, "registry returned HTTP %d for %s@%s", status, name, version)
		e.Retryable = false
		return e
	}
}

func transportMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return err.Error()
}
