// Package types defines core domain types used throughout the application.
package types

import "io"

// StreamType identifies how a proxied payload is handled.
type StreamType string

const (
	StreamTypeHLS     StreamType = "hls"
	StreamTypeGeneric StreamType = "generic"
)

// HLSContentType is the MIME type emitted for rewritten manifests.
const HLSContentType = "application/vnd.apple.mpegurl"

// SearchItem is one playable result returned by /search.
type SearchItem struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"durationSeconds"`
	IsVideo         bool   `json:"isVideo"`
	URL             string `json:"url,omitempty"`
	Placeholder     bool   `json:"placeholder,omitempty"`
}

// StreamDescriptor is the outcome of one stream resolution.
type StreamDescriptor struct {
	Success   bool   `json:"success"`
	AudioURL  string `json:"audioUrl,omitempty"`
	Title     string `json:"title,omitempty"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Resolution is a raw, unproxied media URL with its metadata, as produced
// by one stream strategy.
type Resolution struct {
	AudioURL  string
	Title     string
	Duration  int // seconds
	Thumbnail string
	Channel   string
}

// PlayResponse is the body returned by /play.
type PlayResponse struct {
	Video  SearchItem       `json:"video"`
	Stream StreamDescriptor `json:"stream"`
}

// ExtractedFormat is one media format reported by the extractor.
type ExtractedFormat struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
	Protocol string  `json:"protocol"`
}

// IsAudioOnly reports whether the format carries audio and no video.
func (f *ExtractedFormat) IsAudioOnly() bool {
	hasAudio := f.ACodec != "" && f.ACodec != "none"
	noVideo := f.VCodec == "" || f.VCodec == "none"
	return hasAudio && noVideo
}

// ExtractedInfo is the subset of the extractor's JSON document used here.
// Playlist and search results carry Entries, some of which may be null.
type ExtractedInfo struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Duration   float64            `json:"duration"`
	URL        string             `json:"url"`
	Thumbnail  string             `json:"thumbnail"`
	Uploader   string             `json:"uploader"`
	Channel    string             `json:"channel"`
	WebpageURL string             `json:"webpage_url"`
	Formats    []*ExtractedFormat `json:"formats"`
	Entries    []*ExtractedInfo   `json:"entries"`
}

// ProxyRequest is an inbound /proxy call.
type ProxyRequest struct {
	URL       string
	UserAgent string
	Range     string
	ProxyRoot string // scheme://host of this server as seen by the client
}

// RewriteContext carries what a manifest rewrite needs.
type RewriteContext struct {
	TargetURL string
	BaseURL   string // TargetURL with its last path segment removed
	ProxyRoot string
}

// StreamResponse represents the result of stream processing.
type StreamResponse struct {
	Type        StreamType
	ContentType string
	Headers     map[string]string
	Body        io.ReadCloser
	StatusCode  int
}
