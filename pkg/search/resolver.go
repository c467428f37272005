// Package search turns a user query into a list of playable items.
package search

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/duration"
	"ytaudio-proxy/pkg/extraction"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/metrics"
	"ytaudio-proxy/pkg/query"
	"ytaudio-proxy/pkg/types"
)

// PlaceholderID is the video returned when every search path failed.
const PlaceholderID = "dQw4w9WgXcQ"

// DefaultResolveTimeout bounds one shared search. It is detached from any
// single caller, so it needs its own deadline.
const DefaultResolveTimeout = 60 * time.Second

const (
	placeholderSeconds = 213
	sourceExtractor    = "extractor"
	sourcePlaceholder  = "placeholder"
)

// Extractor resolves a reference through the extraction engine.
type Extractor interface {
	Resolve(ctx context.Context, reference string, opts extraction.Options) (*types.ExtractedInfo, error)
}

// Resolver answers search queries. It never returns an error: failures
// degrade to alternates, a placeholder, or an empty list.
type Resolver struct {
	extractor     Extractor
	alternates    []Source
	searchLimit   int
	playlistLimit int
	placeholder   bool
	group         singleflight.Group
	timeout       time.Duration
	metrics       *metrics.Metrics
	log           *logging.Logger
}

// NewResolver creates a resolver. Alternates are tried in the given order.
func NewResolver(cfg *config.Config, extractor Extractor, alternates []Source, m *metrics.Metrics, log *logging.Logger) *Resolver {
	return &Resolver{
		extractor:     extractor,
		alternates:    alternates,
		searchLimit:   cfg.SearchLimit,
		playlistLimit: cfg.PlaylistLimit,
		placeholder:   cfg.SearchPlaceholder,
		timeout:       DefaultResolveTimeout,
		metrics:       m,
		log:           log.WithComponent("search"),
	}
}

// Search classifies raw and resolves it. Identical concurrent queries share
// one resolution, which keeps running when the caller that started it
// goes away. A caller whose ctx ends gets an empty list.
func (r *Resolver) Search(ctx context.Context, raw string) []types.SearchItem {
	q := query.Classify(raw)
	if q.Value == "" {
		return []types.SearchItem{}
	}

	if ctx.Err() != nil {
		return []types.SearchItem{}
	}

	key := string(q.Kind) + ":" + q.Value
	ch := r.group.DoChan(key, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.resolve(sharedCtx, q), nil
	})

	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		r.log.Debug("search abandoned by caller", "kind", q.Kind, "query", q.Value, "error", ctx.Err())
		return []types.SearchItem{}
	}
	if out.Shared {
		r.log.Debug("search coalesced", "kind", q.Kind, "query", q.Value)
	}

	items := out.Val.([]types.SearchItem)
	// Callers may modify their slice; never hand out the shared one.
	return append(make([]types.SearchItem, 0, len(items)), items...)
}

func (r *Resolver) resolve(ctx context.Context, q query.Query) []types.SearchItem {
	switch q.Kind {
	case query.KindVideo:
		return r.resolveVideo(ctx, q.Value)
	case query.KindPlaylist:
		return r.resolvePlaylist(ctx, q.Value)
	default:
		return r.resolveText(ctx, q.Value)
	}
}

func (r *Resolver) resolveVideo(ctx context.Context, id string) []types.SearchItem {
	watchURL := query.WatchURL(id)
	info, err := r.extractor.Resolve(ctx, watchURL, extraction.FlatOptions())
	if err != nil || info == nil {
		r.log.Warn("video lookup failed", "video_id", id, "error", err)
		r.metrics.ObserveSearch(sourceExtractor, metrics.OutcomeError)
		return []types.SearchItem{}
	}

	if info.ID == "" {
		info.ID = id
	}
	item := itemFromInfo(info)
	item.URL = watchURL
	r.metrics.ObserveSearch(sourceExtractor, metrics.OutcomeOK)
	return []types.SearchItem{item}
}

func (r *Resolver) resolvePlaylist(ctx context.Context, id string) []types.SearchItem {
	info, err := r.extractor.Resolve(ctx, query.PlaylistURL(id), extraction.FlatOptions())
	if err != nil || info == nil {
		r.log.Warn("playlist lookup failed", "playlist_id", id, "error", err)
		r.metrics.ObserveSearch(sourceExtractor, metrics.OutcomeError)
		return []types.SearchItem{}
	}

	items := entriesToItems(info.Entries, r.playlistLimit)
	r.metrics.ObserveSearch(sourceExtractor, outcomeFor(items))
	return items
}

func (r *Resolver) resolveText(ctx context.Context, text string) []types.SearchItem {
	info, err := r.extractor.Resolve(ctx, query.SearchRef(text, r.searchLimit), extraction.FlatOptions())
	if err == nil && info != nil {
		if items := entriesToItems(info.Entries, r.searchLimit); len(items) > 0 {
			r.metrics.ObserveSearch(sourceExtractor, metrics.OutcomeOK)
			return items
		}
	}
	r.log.Info("extractor search empty, trying alternates", "query", text, "error", err)
	r.metrics.ObserveSearch(sourceExtractor, metrics.OutcomeEmpty)

	for _, src := range r.alternates {
		if ctx.Err() != nil {
			break
		}
		items, err := src.Search(ctx, text, r.searchLimit)
		if err != nil || len(items) == 0 {
			r.log.Debug("alternate search failed", "source", src.Name(), "error", err)
			r.metrics.ObserveSearch(src.Name(), metrics.OutcomeError)
			continue
		}
		r.metrics.ObserveSearch(src.Name(), metrics.OutcomeOK)
		return items
	}

	if !r.placeholder {
		return []types.SearchItem{}
	}
	r.log.Warn("all search paths failed, returning placeholder", "query", text)
	r.metrics.ObserveSearch(sourcePlaceholder, metrics.OutcomeOK)
	return []types.SearchItem{Placeholder(text)}
}

// Placeholder is the single item returned when nothing else answered.
func Placeholder(text string) types.SearchItem {
	item := NewItem(PlaceholderID, text+" (alternative search)", placeholderSeconds)
	item.Placeholder = true
	return item
}

func itemFromInfo(info *types.ExtractedInfo) types.SearchItem {
	return NewItem(info.ID, strings.TrimSpace(info.Title), duration.Seconds(info.Duration))
}

// entriesToItems maps non-nil entries in order, keeping at most limit.
func entriesToItems(entries []*types.ExtractedInfo, limit int) []types.SearchItem {
	items := make([]types.SearchItem, 0, min(len(entries), limit))
	for _, e := range entries {
		if len(items) >= limit {
			break
		}
		if e == nil || e.ID == "" {
			continue
		}
		items = append(items, itemFromInfo(e))
	}
	return items
}

func outcomeFor(items []types.SearchItem) string {
	if len(items) == 0 {
		return metrics.OutcomeEmpty
	}
	return metrics.OutcomeOK
}
