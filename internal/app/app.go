// Package app provides the main application setup and dependency injection.
package app

import (
	"context"
	"time"

	"github.com/kkdai/youtube/v2"

	"ytaudio-proxy/pkg/appctx"
	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/extraction"
	"ytaudio-proxy/pkg/flaresolverr"
	"ytaudio-proxy/pkg/handlers/api"
	"ytaudio-proxy/pkg/handlers/streams"
	"ytaudio-proxy/pkg/httpclient"
	"ytaudio-proxy/pkg/invidious"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/metrics"
	"ytaudio-proxy/pkg/registry"
	"ytaudio-proxy/pkg/search"
	"ytaudio-proxy/pkg/server"
	"ytaudio-proxy/pkg/services"
	"ytaudio-proxy/pkg/stream"
)

// App is the main application container.
type App struct {
	Ctx            *appctx.Context
	Server         *server.Server
	HTTPClient     *httpclient.Client
	StreamHandlers *registry.StreamHandlerRegistry
	Strategies     *registry.StrategyRegistry
}

// New creates and initializes the application.
func New() (*App, error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	log.Info("initializing ytaudio-proxy", "addr", cfg.Addr(), "log_level", cfg.LogLevel)

	return Build(cfg, log), nil
}

// Build wires every component from an already loaded configuration.
func Build(cfg *config.Config, log *logging.Logger) *App {
	m := metrics.New()
	ctx := appctx.New(cfg, log).WithMetrics(m)

	httpClient := httpclient.New(cfg, log)

	// FlareSolverr only helps with challenged Invidious instances
	var flareClient *flaresolverr.Client
	if cfg.FlareSolverrURL != "" {
		flareClient = flaresolverr.NewClient(cfg.FlareSolverrURL, cfg.FlareSolverrTimeout, log)
		log.Info("FlareSolverr client enabled", "url", cfg.FlareSolverrURL)
	}
	inv := invidious.NewClient(cfg, httpClient, flareClient, log)
	ctx.WithInstances(inv.Instances())

	runner := extraction.NewYtDlpRunner(cfg.YtDlpPath, httpClient.ExtractorProxy)
	adapter := extraction.NewAdapter(cfg, runner, log, extraction.WithMetrics(m))

	ctx.WithSearch(search.NewResolver(cfg, adapter, searchSources(cfg, inv, httpClient, log), m, log))

	strategies := registry.NewStrategyRegistry()
	registerStrategies(strategies, cfg, adapter, inv, httpClient, log)
	ctx.WithStreams(stream.NewResolver(strategies, m, log))

	streamHandlers := registry.NewStreamHandlerRegistry()
	registerStreamHandlers(streamHandlers, log)

	ctx.WithProxyService(services.NewProxyService(log, httpClient, streamHandlers, m, cfg.ProxyUserAgent))

	srv := server.New(cfg, log, m)
	api.NewHandlers(ctx).RegisterRoutes(srv.Router())

	return &App{
		Ctx:            ctx,
		Server:         srv,
		HTTPClient:     httpClient,
		StreamHandlers: streamHandlers,
		Strategies:     strategies,
	}
}

// Run starts the application.
func (a *App) Run() error {
	a.Ctx.Log.Info("starting ytaudio-proxy server", "addr", a.Ctx.Config.Addr())
	return a.Server.Start()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Ctx.Log.Error("server shutdown error", "error", err)
	}
}

// searchSources returns the alternates tried, in order, when the extraction
// engine finds nothing for a free-text query.
func searchSources(cfg *config.Config, inv *invidious.Client, client *httpclient.Client, log *logging.Logger) []search.Source {
	sources := []search.Source{search.NewInvidiousSource(inv)}
	if cfg.YouTubeAPIKey != "" {
		sources = append(sources, search.NewDataAPISource(cfg.YouTubeAPIKey, "", client))
	}
	sources = append(sources, search.NewScrapeSource())

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	log.Info("registered search sources", "sources", names)
	return sources
}

// registerStrategies registers the stream strategies in the order they are tried.
// Add new strategies here by:
// 1. Implementing interfaces.Strategy in pkg/stream/
// 2. Registering it below
func registerStrategies(
	reg *registry.StrategyRegistry,
	cfg *config.Config,
	adapter *extraction.Adapter,
	inv *invidious.Client,
	client *httpclient.Client,
	log *logging.Logger,
) {
	reg.Register(stream.NewDirectStrategy(adapter))
	reg.Register(stream.NewInvidiousStrategy(inv))
	reg.Register(stream.NewFallbackStrategy(adapter))

	if cfg.NativeFallback {
		reg.Register(stream.NewNativeStrategy(&youtube.Client{HTTPClient: client.StandardClient()}))
	}

	for _, name := range cfg.DisabledStrategies {
		if reg.GetByName(name) == nil {
			log.Warn("unknown strategy in DISABLED_STRATEGIES", "strategy", name)
			continue
		}
		reg.Remove(name)
	}

	log.Info("registered stream strategies", "strategies", reg.Names())
}

// registerStreamHandlers registers all stream handlers.
// Add new stream handlers here by:
// 1. Creating a new handler in pkg/handlers/streams/
// 2. Registering it below
func registerStreamHandlers(reg *registry.StreamHandlerRegistry, log *logging.Logger) {
	reg.Register(streams.NewHLSHandler(log))

	// Generic handler as fallback
	reg.SetFallback(streams.NewGenericHandler(log))

	log.Info("registered stream handlers", "types", []string{"hls", "generic"})
}
