package search

import (
	"context"
	"errors"

	"github.com/raitonoberu/ytsearch"

	"ytaudio-proxy/pkg/duration"
	"ytaudio-proxy/pkg/invidious"
	"ytaudio-proxy/pkg/query"
	"ytaudio-proxy/pkg/types"
)

// Source is an alternate search backend tried when the extraction engine
// returns nothing for a free-text query.
type Source interface {
	Name() string
	Search(ctx context.Context, q string, limit int) ([]types.SearchItem, error)
}

// NewItem builds a SearchItem with the shared defaults applied.
func NewItem(id, title string, seconds int) types.SearchItem {
	if title == "" {
		title = "Untitled"
	}
	if seconds < 0 {
		seconds = 0
	}
	return types.SearchItem{
		ID:              id,
		Title:           title,
		Duration:        duration.Format(seconds),
		DurationSeconds: seconds,
		IsVideo:         true,
		URL:             query.WatchURL(id),
	}
}

// InvidiousSource searches through Invidious instances.
type InvidiousSource struct {
	client *invidious.Client
}

// NewInvidiousSource wraps an Invidious client.
func NewInvidiousSource(client *invidious.Client) *InvidiousSource {
	return &InvidiousSource{client: client}
}

func (s *InvidiousSource) Name() string { return "invidious" }

func (s *InvidiousSource) Search(ctx context.Context, q string, limit int) ([]types.SearchItem, error) {
	results, err := s.client.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	items := make([]types.SearchItem, 0, min(len(results), limit))
	for _, r := range results {
		if len(items) == limit {
			break
		}
		items = append(items, NewItem(r.VideoID, r.Title, r.LengthSeconds))
	}
	return items, nil
}

// ScrapeSource searches by parsing the public results page, which needs no
// API key and no extraction engine.
type ScrapeSource struct {
	// next fetches one results page; replaced in tests.
	next func(q string) ([]scrapedVideo, error)
}

type scrapedVideo struct {
	ID       string
	Title    string
	Duration int
}

// NewScrapeSource creates a scraping source.
func NewScrapeSource() *ScrapeSource {
	return &ScrapeSource{next: scrapeFirstPage}
}

func scrapeFirstPage(q string) ([]scrapedVideo, error) {
	res, err := ytsearch.VideoSearch(q).Next()
	if err != nil {
		return nil, err
	}
	videos := make([]scrapedVideo, 0, len(res.Videos))
	for _, v := range res.Videos {
		videos = append(videos, scrapedVideo{ID: v.ID, Title: v.Title, Duration: v.Duration})
	}
	return videos, nil
}

func (s *ScrapeSource) Name() string { return "scrape" }

func (s *ScrapeSource) Search(ctx context.Context, q string, limit int) ([]types.SearchItem, error) {
	type result struct {
		videos []scrapedVideo
		err    error
	}
	// The scraper takes no context; abandon it when ctx ends.
	done := make(chan result, 1)
	go func() {
		videos, err := s.next(q)
		done <- result{videos, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return nil, r.err
	}

	items := make([]types.SearchItem, 0, limit)
	for _, v := range r.videos {
		if len(items) == limit {
			break
		}
		if v.ID == "" {
			continue
		}
		items = append(items, NewItem(v.ID, v.Title, v.Duration))
	}
	if len(items) == 0 {
		return nil, errors.New("no results on page")
	}
	return items, nil
}
