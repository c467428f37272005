// Package query classifies user input into video, playlist or free-text references.
package query

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies how a query should be resolved.
type Kind string

const (
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
	KindText     Kind = "text"
)

// Query is a classified user input.
type Query struct {
	Kind  Kind
	Value string // video ID, playlist ID, or trimmed search text
	Raw   string
}

var (
	videoInURLRe  = regexp.MustCompile(`(?:v=|youtu\.be/|embed/)([^&?/\n]{11})`)
	bareVideoIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	playlistRe    = regexp.MustCompile(`[&?]list=([^&]+)`)
)

// Classify returns the kind of reference contained in input.
// A video ID wins over a playlist ID when both are present.
func Classify(input string) Query {
	trimmed := strings.TrimSpace(input)
	q := Query{Raw: input, Kind: KindText, Value: trimmed}

	if id := VideoID(trimmed); id != "" {
		q.Kind = KindVideo
		q.Value = id
		return q
	}
	if id := PlaylistID(trimmed); id != "" {
		q.Kind = KindPlaylist
		q.Value = id
	}
	return q
}

// VideoID extracts an 11-character video ID from a URL or bare token.
func VideoID(s string) string {
	if m := videoInURLRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	if bareVideoIDRe.MatchString(s) {
		return s
	}
	return ""
}

// PlaylistID extracts the value of a list= query parameter.
func PlaylistID(s string) string {
	if m := playlistRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return ""
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// PlaylistURL returns the canonical playlist URL for a playlist ID.
func PlaylistURL(playlistID string) string {
	return "https://www.youtube.com/playlist?list=" + playlistID
}

// SearchRef returns the extractor search reference for the top n results.
func SearchRef(text string, n int) string {
	if n <= 0 {
		return "ytsearch:" + text
	}
	return "ytsearch" + strconv.Itoa(n) + ":" + text
}
