// Package interfaces defines the pluggable pieces of the resolution and
// proxy pipelines. Implementations are registered in pkg/registry.
package interfaces

import (
	"context"
	"net/http"

	"ytaudio-proxy/pkg/types"
)

// StreamHandler turns a fetched upstream response into what the client receives.
//
// To add a new payload type:
// 1. Create a new file in pkg/handlers/streams/
// 2. Implement this interface
// 3. Register it in the StreamHandlerRegistry
type StreamHandler interface {
	// Type returns the stream type this handler processes.
	Type() types.StreamType

	// CanHandle reports whether the handler wants a response for this URL
	// and upstream Content-Type.
	CanHandle(url, contentType string) bool

	// Handle consumes resp and builds the client response. Handlers that
	// stream must leave resp.Body open inside the returned Body.
	Handle(ctx context.Context, resp *http.Response, rc *types.RewriteContext) (*types.StreamResponse, error)
}

// Strategy is one way of obtaining a playable audio URL for a video.
//
// To add a new strategy:
// 1. Create a new file in pkg/stream/
// 2. Implement this interface
// 3. Register it in the StrategyRegistry (see internal/app)
type Strategy interface {
	// Name returns a unique identifier, reported in responses and metrics.
	Name() string

	// Resolve returns the raw upstream media URL and metadata.
	Resolve(ctx context.Context, videoID string) (*types.Resolution, error)
}

// Searcher turns a raw query into a list of playable items. It never fails;
// an empty list means nothing was found.
type Searcher interface {
	Search(ctx context.Context, raw string) []types.SearchItem
}

// StreamResolver resolves a video ID to a proxied audio URL.
type StreamResolver interface {
	GetStream(ctx context.Context, videoID, origin string) (types.StreamDescriptor, error)
	Strategies() []string
}

// Proxier fetches an upstream URL on behalf of the client.
type Proxier interface {
	Proxy(ctx context.Context, req *types.ProxyRequest) (*types.StreamResponse, error)
}
