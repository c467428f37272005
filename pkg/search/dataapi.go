package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ytaudio-proxy/pkg/duration"
	"ytaudio-proxy/pkg/invidious"
	"ytaudio-proxy/pkg/types"
)

// DefaultDataAPIBase is the YouTube Data API v3 root.
const DefaultDataAPIBase = "https://www.googleapis.com/youtube/v3"

// DataAPISource searches with the official YouTube Data API. It is only
// usable with an API key.
type DataAPISource struct {
	apiKey  string
	baseURL string
	fetcher invidious.Fetcher
}

// NewDataAPISource creates a source. baseURL defaults to DefaultDataAPIBase.
func NewDataAPISource(apiKey, baseURL string, fetcher invidious.Fetcher) *DataAPISource {
	if baseURL == "" {
		baseURL = DefaultDataAPIBase
	}
	return &DataAPISource{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

type dataAPISearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

type dataAPIVideosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (s *DataAPISource) Name() string { return "youtube_api" }

func (s *DataAPISource) Search(ctx context.Context, q string, limit int) ([]types.SearchItem, error) {
	limit = min(max(limit, 1), 50)

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("q", q)
	params.Set("key", s.apiKey)

	var body dataAPISearchResponse
	if err := s.get(ctx, "/search?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}

	// Search results carry no duration; a failed lookup leaves them at zero.
	durations, _ := s.durations(ctx, ids)

	items := make([]types.SearchItem, 0, len(ids))
	for _, it := range body.Items {
		if it.ID.VideoID == "" {
			continue
		}
		items = append(items, NewItem(it.ID.VideoID, it.Snippet.Title, durations[it.ID.VideoID]))
	}
	return items, nil
}

func (s *DataAPISource) durations(ctx context.Context, ids []string) (map[string]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", s.apiKey)

	var body dataAPIVideosResponse
	if err := s.get(ctx, "/videos?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(body.Items))
	for _, it := range body.Items {
		out[it.ID] = duration.ParseISO8601(it.ContentDetails.Duration)
	}
	return out, nil
}

func (s *DataAPISource) get(ctx context.Context, path string, out any) error {
	resp, err := s.fetcher.Get(ctx, s.baseURL+path, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube api status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
