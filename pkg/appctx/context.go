// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"time"

	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/interfaces"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/metrics"
)

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config       *config.Config
	Log          *logging.Logger
	Metrics      *metrics.Metrics
	Search       interfaces.Searcher
	Streams      interfaces.StreamResolver
	ProxyService interfaces.Proxier
	Instances    []string
	StartTime    time.Time
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config:    cfg,
		Log:       log,
		StartTime: time.Now(),
	}
}

// WithMetrics sets the metrics collectors.
func (c *Context) WithMetrics(m *metrics.Metrics) *Context {
	c.Metrics = m
	return c
}

// WithSearch sets the search resolver.
func (c *Context) WithSearch(s interfaces.Searcher) *Context {
	c.Search = s
	return c
}

// WithStreams sets the stream resolver.
func (c *Context) WithStreams(s interfaces.StreamResolver) *Context {
	c.Streams = s
	return c
}

// WithProxyService sets the proxy service.
func (c *Context) WithProxyService(ps interfaces.Proxier) *Context {
	c.ProxyService = ps
	return c
}

// WithInstances records the alternate metadata instances reported by /health.
func (c *Context) WithInstances(instances []string) *Context {
	c.Instances = instances
	return c
}

// Uptime returns how long the process has been serving.
func (c *Context) Uptime() time.Duration {
	return time.Since(c.StartTime)
}
