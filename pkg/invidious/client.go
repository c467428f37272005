// Package invidious queries public Invidious instances for search results
// and stream metadata when the extraction engine is unavailable or blocked.
package invidious

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/flaresolverr"
	"ytaudio-proxy/pkg/logging"
)

// ErrNoInstance is returned when every configured instance failed.
var ErrNoInstance = errors.New("no invidious instance answered")

// maxBody bounds how much of an instance reply is read.
const maxBody = 8 << 20

// Fetcher performs upstream GET requests.
type Fetcher interface {
	Get(ctx context.Context, targetURL string, headers map[string]string) (*http.Response, error)
}

// Thumbnail is one entry of videoThumbnails.
type Thumbnail struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// SearchResult is one item of /api/v1/search.
type SearchResult struct {
	Type            string      `json:"type"`
	VideoID         string      `json:"videoId"`
	Title           string      `json:"title"`
	Author          string      `json:"author"`
	LengthSeconds   int         `json:"lengthSeconds"`
	VideoThumbnails []Thumbnail `json:"videoThumbnails"`
}

// AdaptiveFormat is one separate audio or video rendition.
type AdaptiveFormat struct {
	URL      string  `json:"url"`
	Type     string  `json:"type"` // MIME type with codecs, e.g. audio/webm; codecs="opus"
	Itag     string  `json:"itag"`
	Bitrate  FlexInt `json:"bitrate"`
	Encoding string  `json:"encoding"`
}

// IsAudio reports whether the format carries audio only.
func (f AdaptiveFormat) IsAudio() bool {
	return strings.HasPrefix(f.Type, "audio/")
}

// Video is the subset of /api/v1/videos/{id} used for stream resolution.
type Video struct {
	VideoID         string           `json:"videoId"`
	Title           string           `json:"title"`
	Author          string           `json:"author"`
	LengthSeconds   int              `json:"lengthSeconds"`
	VideoThumbnails []Thumbnail      `json:"videoThumbnails"`
	AdaptiveFormats []AdaptiveFormat `json:"adaptiveFormats"`
}

// Thumbnail returns the first thumbnail URL, or "".
func (v *Video) Thumbnail() string {
	if len(v.VideoThumbnails) == 0 {
		return ""
	}
	return v.VideoThumbnails[0].URL
}

// BestAudio returns the audio format with the highest bitrate, or nil.
// Ties keep the earlier format.
func (v *Video) BestAudio() *AdaptiveFormat {
	var best *AdaptiveFormat
	for i := range v.AdaptiveFormats {
		f := &v.AdaptiveFormats[i]
		if !f.IsAudio() || f.URL == "" {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

// FlexInt decodes integers that instances send either as JSON numbers or strings.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		v = int64(f)
	}
	*n = FlexInt(v)
	return nil
}

// Client tries each configured instance in order until one answers.
type Client struct {
	instances []string
	fetcher   Fetcher
	solver    *flaresolverr.Client
	timeout   time.Duration
	userAgent string
	log       *logging.Logger
}

// NewClient creates a client. solver may be nil.
func NewClient(cfg *config.Config, fetcher Fetcher, solver *flaresolverr.Client, log *logging.Logger) *Client {
	userAgent := ""
	if len(cfg.UserAgents) > 0 {
		userAgent = cfg.UserAgents[0]
	}
	return &Client{
		instances: cfg.InvidiousInstances,
		fetcher:   fetcher,
		solver:    solver,
		timeout:   cfg.InvidiousTimeout,
		userAgent: userAgent,
		log:       log.WithComponent("invidious"),
	}
}

// Instances returns the configured instance base URLs.
func (c *Client) Instances() []string {
	return append([]string(nil), c.instances...)
}

// Search runs a video search. The first instance that returns a parseable
// list wins, even if the list is empty.
func (c *Client) Search(ctx context.Context, q string) ([]SearchResult, error) {
	path := "/api/v1/search?q=" + url.QueryEscape(q) + "&type=video"

	var results []SearchResult
	if err := c.getJSON(ctx, path, &results); err != nil {
		return nil, err
	}

	videos := results[:0]
	for _, r := range results {
		if r.VideoID != "" && (r.Type == "" || r.Type == "video") {
			videos = append(videos, r)
		}
	}
	return videos, nil
}

// Video fetches metadata and formats for one video.
func (c *Client) Video(ctx context.Context, videoID string) (*Video, error) {
	var v Video
	if err := c.getJSON(ctx, "/api/v1/videos/"+url.PathEscape(videoID), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if len(c.instances) == 0 {
		return ErrNoInstance
	}

	var lastErr error
	for _, instance := range c.instances {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := instance + path
		body, err := c.fetch(ctx, target)
		if err == nil {
			if err = json.Unmarshal(body, out); err == nil {
				c.log.Debug("instance answered", "instance", instance)
				return nil
			}
			err = fmt.Errorf("decode %s: %w", instance, err)
		}

		lastErr = err
		c.log.Debug("instance failed", "instance", instance, "error", err)
	}

	return fmt.Errorf("%w: %v", ErrNoInstance, lastErr)
}

// statusError is a non-200 instance reply.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// challenged reports whether a reply looks like a Cloudflare challenge page.
func challenged(err error) bool {
	var se *statusError
	return errors.As(err, &se) && (se.code == http.StatusForbidden || se.code == http.StatusServiceUnavailable)
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	body, err := c.fetchDirect(ctx, target)
	if err == nil || !challenged(err) || !c.solver.IsConfigured() {
		return body, err
	}

	c.log.Debug("retrying through FlareSolverr", "url", target, "error", err)
	return c.solver.GetJSON(ctx, target)
}

func (c *Client) fetchDirect(ctx context.Context, target string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	headers := map[string]string{"Accept": "application/json"}
	if c.userAgent != "" {
		headers["User-Agent"] = c.userAgent
	}

	resp, err := c.fetcher.Get(ctx, target, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}
