// Package httpclient provides the upstream HTTP client with proxy routing.
package httpclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/logging"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// Client routes upstream requests through the configured proxies.
//
// None of the underlying http.Clients carry a total Timeout: media bodies
// may stream for as long as the listener keeps reading. Dial, TLS and
// response-header timeouts bound the time to first byte, and callers that
// want a deadline on the whole exchange put it on the request context.
type Client struct {
	defaultClient *http.Client
	utlsClient    *http.Client // browser-like TLS fingerprint for challenge-protected hosts
	proxyClients  map[string]*http.Client
	routes        []config.TransportRoute
	globalProxies []string
	utlsDomains   []string
	timeout       time.Duration
	mu            sync.RWMutex
	log           *logging.Logger
}

// New creates a client from the routing and timeout settings in cfg.
func New(cfg *config.Config, log *logging.Logger) *Client {
	timeout := cfg.ProxyTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		proxyClients:  make(map[string]*http.Client),
		routes:        cfg.TransportRoutes,
		globalProxies: cfg.GlobalProxies,
		utlsDomains:   cfg.UTLSDomains,
		timeout:       timeout,
		log:           log.WithComponent("httpclient"),
	}

	c.defaultClient = &http.Client{Transport: c.newTransport()}
	c.utlsClient = &http.Client{Transport: newUTLSRoundTripper(timeout)}

	return c
}

// ipv4DialContext forces IPv4-only connections.
// Media CDNs hand out signed URLs bound to the address family that requested them.
func (c *Client) ipv4DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network == "tcp" {
		network = "tcp4"
	}
	d := &net.Dialer{Timeout: c.timeout, KeepAlive: 60 * time.Second}
	return d.DialContext(ctx, network, addr)
}

func (c *Client) newTransport() *http.Transport {
	return &http.Transport{
		DialContext:           c.ipv4DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   c.timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: c.timeout,
	}
}

// utlsRoundTripper implements http.RoundTripper with utls and HTTP/2 support.
type utlsRoundTripper struct {
	dialer         *net.Dialer
	h2Transport    *http2.Transport
	headerTimeout  time.Duration
	plainTransport http.RoundTripper
}

func newUTLSRoundTripper(timeout time.Duration) *utlsRoundTripper {
	return &utlsRoundTripper{
		dialer: &net.Dialer{
			Timeout:   timeout,
			KeepAlive: 60 * time.Second,
		},
		h2Transport:    &http2.Transport{},
		headerTimeout:  timeout,
		plainTransport: http.DefaultTransport,
	}
}

func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.plainTransport.RoundTrip(req)
	}

	addr := req.URL.Host
	if req.URL.Port() == "" {
		addr = net.JoinHostPort(req.URL.Hostname(), "443")
	}

	conn, err := t.dialer.DialContext(req.Context(), "tcp4", addr)
	if err != nil {
		return nil, err
	}

	utlsConn := utls.UClient(conn, &utls.Config{ServerName: req.URL.Hostname()}, utls.HelloChrome_120)

	// Bound the handshake and the wait for response headers.
	conn.SetDeadline(time.Now().Add(t.headerTimeout))
	if err := utlsConn.HandshakeContext(req.Context()); err != nil {
		conn.Close()
		return nil, err
	}

	if utlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		conn.SetDeadline(time.Time{})
		h2Conn, err := t.h2Transport.NewClientConn(utlsConn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2Conn.RoundTrip(req)
	}

	return t.doHTTP1Request(utlsConn, conn, req)
}

func (t *utlsRoundTripper) doHTTP1Request(tlsConn, raw net.Conn, req *http.Request) (*http.Response, error) {
	if err := req.Write(tlsConn); err != nil {
		tlsConn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(tlsConn), req)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}
	raw.SetDeadline(time.Time{})

	resp.Body = &connCloser{resp.Body, tlsConn}
	return resp, nil
}

type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.conn.Close()
}

// needsUTLS returns true if the URL requires browser-like TLS fingerprinting.
func (c *Client) needsUTLS(targetURL string) bool {
	lower := strings.ToLower(targetURL)
	for _, domain := range c.utlsDomains {
		if domain != "" && strings.Contains(lower, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}

// Do executes an HTTP request, routing through proxies as configured.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.getClientForURL(req.URL.String()).Do(req)
}

// Get issues a GET for targetURL with the given headers.
func (c *Client) Get(ctx context.Context, targetURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(req)
}

// StandardClient returns an *http.Client whose transport applies the same
// routing rules, for libraries that only accept a plain client.
func (c *Client) StandardClient() *http.Client {
	return &http.Client{Transport: routingTransport{c}}
}

type routingTransport struct{ c *Client }

func (t routingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.c.getClientForURL(req.URL.String()).Transport.RoundTrip(req)
}

// getClientForURL returns the appropriate HTTP client based on URL routing rules.
func (c *Client) getClientForURL(targetURL string) *http.Client {
	if c.needsUTLS(targetURL) {
		c.log.Debug("using utls client", "url", targetURL)
		return c.utlsClient
	}

	// Transport routes are the most specific
	for _, route := range c.routes {
		if strings.Contains(targetURL, route.URLPattern) {
			c.log.Debug("matched transport route", "pattern", route.URLPattern, "proxy", route.Proxy, "direct", route.Direct)

			if route.Direct {
				if route.DisableSSL {
					return c.getInsecureClient()
				}
				return c.defaultClient
			}

			if route.Proxy != "" {
				return c.getOrCreateProxyClient(route.Proxy, route.DisableSSL)
			}
			if route.DisableSSL {
				return c.getInsecureClient()
			}
		}
	}

	if len(c.globalProxies) > 0 {
		return c.getOrCreateProxyClient(c.globalProxies[0], false)
	}

	return c.defaultClient
}

// getOrCreateProxyClient returns a cached proxy client or creates a new one.
func (c *Client) getOrCreateProxyClient(proxyURL string, disableSSL bool) *http.Client {
	cacheKey := proxyURL
	if disableSSL {
		cacheKey += ":insecure"
	}

	c.mu.RLock()
	if client, ok := c.proxyClients[cacheKey]; ok {
		c.mu.RUnlock()
		return client
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if client, ok := c.proxyClients[cacheKey]; ok {
		return client
	}

	client := c.createProxyClient(proxyURL, disableSSL)
	c.proxyClients[cacheKey] = client
	c.log.Debug("created proxy client", "proxy", proxyURL, "disable_ssl", disableSSL)

	return client
}

// createProxyClient creates a new HTTP client for the given proxy.
func (c *Client) createProxyClient(proxyURL string, disableSSL bool) *http.Client {
	transport := c.newTransport()

	if disableSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if proxyURL == "" {
		return &http.Client{Transport: transport}
	}

	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		c.log.Error("failed to parse proxy URL", "url", proxyURL, "error", err)
		return c.defaultClient
	}

	switch parsedURL.Scheme {
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(parsedURL, proxy.Direct)
		if err != nil {
			c.log.Error("failed to create SOCKS5 dialer", "error", err)
			return c.defaultClient
		}
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.Dial = dialer.Dial
		}
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	default:
		c.log.Warn("unsupported proxy scheme", "scheme", parsedURL.Scheme)
		return c.defaultClient
	}

	return &http.Client{Transport: transport}
}

// getInsecureClient returns a client that skips SSL verification.
func (c *Client) getInsecureClient() *http.Client {
	return c.getOrCreateProxyClient("", true)
}

// ExtractorProxy returns the proxy the extraction engine should use for
// targetURL, or "" for a direct connection. Only explicit routes and the
// global proxy apply; fingerprinting is not available to the subprocess.
func (c *Client) ExtractorProxy(targetURL string) string {
	for _, route := range c.routes {
		if strings.Contains(targetURL, route.URLPattern) {
			if route.Direct {
				return ""
			}
			if route.Proxy != "" {
				return route.Proxy
			}
		}
	}
	if len(c.globalProxies) > 0 {
		return c.globalProxies[0]
	}
	return ""
}
