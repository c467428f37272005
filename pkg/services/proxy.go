// Package services holds the request-level orchestration behind the HTTP handlers.
package services

import (
	"context"
	"net/http"
	"time"

	"ytaudio-proxy/pkg/apperr"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/metrics"
	"ytaudio-proxy/pkg/registry"
	"ytaudio-proxy/pkg/types"
	"ytaudio-proxy/pkg/urlutil"
)

// DefaultUserAgent is sent upstream when the client supplied none.
const DefaultUserAgent = "ytaudio-proxy/1.0"

// Fetcher issues the upstream request.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProxyService fetches an upstream URL and hands the reply to the stream
// handler that claims it.
type ProxyService struct {
	log       *logging.Logger
	client    Fetcher
	handlers  *registry.StreamHandlerRegistry
	metrics   *metrics.Metrics
	userAgent string
}

// NewProxyService creates a new proxy service.
func NewProxyService(
	log *logging.Logger,
	client Fetcher,
	handlers *registry.StreamHandlerRegistry,
	m *metrics.Metrics,
	userAgent string,
) *ProxyService {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ProxyService{
		log:       log.WithComponent("proxy-service"),
		client:    client,
		handlers:  handlers,
		metrics:   m,
		userAgent: userAgent,
	}
}

// Proxy fetches req.URL and returns the processed response. The caller owns
// the returned Body.
func (s *ProxyService) Proxy(ctx context.Context, req *types.ProxyRequest) (*types.StreamResponse, error) {
	if req.URL == "" {
		return nil, apperr.New(apperr.KindInput, "services.Proxy", "missing url parameter")
	}
	if !urlutil.IsHTTPURL(req.URL) {
		return nil, apperr.New(apperr.KindInput, "services.Proxy", "url must be an absolute http(s) URL")
	}

	start := time.Now()
	log := s.log.With("url", req.URL)

	upstream, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInput, "services.Proxy", err)
	}

	ua := req.UserAgent
	if ua == "" {
		ua = s.userAgent
	}
	upstream.Header.Set("User-Agent", ua)
	if req.Range != "" {
		upstream.Header.Set("Range", req.Range)
	}

	resp, err := s.client.Do(upstream)
	if err != nil {
		log.Warn("upstream fetch failed", "error", err)
		s.metrics.ObserveProxy("fetch", metrics.OutcomeError)
		return nil, apperr.Wrap(apperr.KindUpstream, "services.Proxy", err)
	}

	contentType := resp.Header.Get("Content-Type")
	handler := s.handlers.Get(req.URL, contentType)
	if handler == nil {
		resp.Body.Close()
		s.metrics.ObserveProxy("none", metrics.OutcomeError)
		return nil, apperr.New(apperr.KindInternal, "services.Proxy", "no stream handler registered")
	}

	rc := &types.RewriteContext{
		TargetURL: req.URL,
		BaseURL:   urlutil.GetBaseDirectory(req.URL),
		ProxyRoot: req.ProxyRoot,
	}

	out, err := handler.Handle(ctx, resp, rc)
	if err != nil {
		resp.Body.Close()
		s.metrics.ObserveProxy(string(handler.Type()), metrics.OutcomeError)
		return nil, err
	}

	outcome := metrics.OutcomeOK
	if out.StatusCode >= http.StatusBadRequest {
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveProxy(string(handler.Type()), outcome)

	log.Debug("proxied",
		"type", handler.Type(),
		"status", out.StatusCode,
		"content_type", out.ContentType,
		"elapsed", time.Since(start))

	return out, nil
}
