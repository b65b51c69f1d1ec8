package crawler

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/proxy"
)

// Default transport settings.
const (
	// DefaultUserAgent identifies imgcrawl in HTTP requests.
	DefaultUserAgent = "imgcrawl/1.0 (+https://github.com/nao1215/imgcrawl)"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// maxRedirects stops redirect loops while still following normal chains.
	maxRedirects = 10
)

// Response is the part of an HTTP response the crawler works with.
type Response struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code. Only 2xx responses are returned
	// as a Response; everything else is a *StatusError.
	StatusCode int

	// ContentType is the Content-Type response header.
	ContentType string

	// Body is the full response body, bounded by the transport's limit.
	Body []byte
}

// Transport performs a single GET. It does not retry; retries are the
// Fetcher's job.
type Transport interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
}

// HeaderFunc returns extra request headers for a host.
// It lets site-specific configuration (cookies, auth headers) reach the
// requests without the transport knowing about configuration files.
type HeaderFunc func(host string) map[string]string

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
	// maxBodySize caps the bytes read from one response body.
	maxBodySize int64
	// headers adds per-host request headers. May be nil.
	headers HeaderFunc
	// proxyAddr is the SOCKS5 proxy address, empty for a direct dial.
	proxyAddr string
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) TransportOption {
	return func(t *HTTPTransport) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum body size in bytes.
// Non-positive values keep the default.
func WithMaxBodySize(size int64) TransportOption {
	return func(t *HTTPTransport) {
		if size > 0 {
			t.maxBodySize = size
		}
	}
}

// WithHeaderFunc installs a per-host header source.
func WithHeaderFunc(fn HeaderFunc) TransportOption {
	return func(t *HTTPTransport) {
		t.headers = fn
	}
}

// WithHTTPClient replaces the underlying client.
// Tests use it with httptest.Server.Client().
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithSOCKS5Proxy routes every connection through the SOCKS5 proxy at
// addr ("host:port").
func WithSOCKS5Proxy(addr string) TransportOption {
	return func(t *HTTPTransport) {
		t.proxyAddr = addr
	}
}

// NewHTTPTransport creates an HTTPTransport.
//
// Per-attempt timeouts are carried by the request context (see Fetcher),
// so the client itself has no global timeout.
func NewHTTPTransport(opts ...TransportOption) (*HTTPTransport, error) {
	t := &HTTPTransport{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		client, err := newHTTPClient(t.proxyAddr)
		if err != nil {
			return nil, err
		}
		t.client = client
	}

	return t, nil
}

// newHTTPClient builds the default client, optionally dialing through a
// SOCKS5 proxy.
func newHTTPClient(proxyAddr string) (*http.Client, error) {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxyAddr != "" {
		// nil auth: the common local proxies (Tor, ssh -D) don't require it
		dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// Get implements Transport.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/*;q=0.8,*/*;q=0.5")
	if t.headers != nil {
		for k, v := range t.headers(req.URL.Hostname()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > t.maxBodySize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, t.maxBodySize)
	}

	return &Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
