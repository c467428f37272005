// Package streams provides stream handler implementations.
package streams

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"ytaudio-proxy/pkg/apperr"
	"ytaudio-proxy/pkg/interfaces"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/types"
	"ytaudio-proxy/pkg/urlutil"
)

// maxManifestSize bounds how much of a playlist is buffered for rewriting.
const maxManifestSize = 16 << 20

// HLSHandler rewrites HLS (M3U8) playlists so every reference loops back
// through the proxy.
type HLSHandler struct {
	maxSize int64
	log     *logging.Logger
}

// NewHLSHandler creates a new HLS stream handler.
func NewHLSHandler(log *logging.Logger) *HLSHandler {
	return &HLSHandler{maxSize: maxManifestSize, log: log.WithComponent("hls-handler")}
}

// Type returns the stream type.
func (h *HLSHandler) Type() types.StreamType {
	return types.StreamTypeHLS
}

// CanHandle reports whether the upstream reply is an HLS playlist, judged by
// its Content-Type or a .m3u8 suffix on the URL or its path.
func (h *HLSHandler) CanHandle(urlStr, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "mpegurl") {
		return true
	}
	lower := strings.ToLower(urlStr)
	if strings.HasSuffix(lower, ".m3u8") {
		return true
	}
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".m3u8")
}

// Handle reads the playlist and rewrites it. Error replies from upstream are
// passed through untouched since they are not playlists.
func (h *HLSHandler) Handle(ctx context.Context, resp *http.Response, rc *types.RewriteContext) (*types.StreamResponse, error) {
	if resp.StatusCode >= http.StatusBadRequest {
		h.log.Warn("manifest fetch failed", "url", rc.TargetURL, "status", resp.StatusCode)
		return &types.StreamResponse{
			Type:        types.StreamTypeHLS,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        resp.Body,
			StatusCode:  resp.StatusCode,
		}, nil
	}
	defer resp.Body.Close()

	// One byte past the limit tells an oversized playlist from one that
	// fits exactly.
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxSize+1))
	if err != nil {
		h.log.Error("failed to read manifest", "url", rc.TargetURL, "error", err)
		return nil, apperr.Wrap(apperr.KindManifest, "streams.HLSHandler", err)
	}
	if int64(len(body)) > h.maxSize {
		h.log.Error("manifest too large", "url", rc.TargetURL, "limit_bytes", h.maxSize)
		return nil, apperr.New(apperr.KindManifest, "streams.HLSHandler", "manifest exceeds size limit")
	}

	rewritten := RewriteManifest(body, rc)
	h.log.Debug("rewrote manifest", "url", rc.TargetURL, "in_bytes", len(body), "out_bytes", len(rewritten))

	return &types.StreamResponse{
		Type:        types.StreamTypeHLS,
		ContentType: types.HLSContentType,
		Body:        io.NopCloser(bytes.NewReader(rewritten)),
		StatusCode:  http.StatusOK,
		Headers: map[string]string{
			"Cache-Control": "no-cache, no-store, must-revalidate",
		},
	}, nil
}

// RewriteManifest routes every reference in an HLS playlist through the proxy.
//
// Lines are split on "\n" and a trailing "\r" is dropped. Blank lines and
// tags pass through, except that URI="..." attributes inside tags are
// rewritten. Every other line is resolved against rc.BaseURL and replaced by
// its proxy URL. Line count and order are preserved, and references that
// already point at the proxy are left alone.
func RewriteManifest(manifest []byte, rc *types.RewriteContext) []byte {
	lines := strings.Split(string(manifest), "\n")

	var out bytes.Buffer
	out.Grow(len(manifest) * 2)

	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.TrimSpace(line) == "":
		case strings.HasPrefix(line, "#"):
			if strings.Contains(line, "URI=\"") {
				line = rewriteURITag(line, rc)
			}
		default:
			line = proxyReference(strings.TrimSpace(line), rc)
		}

		out.WriteString(line)
		if i < len(lines)-1 {
			out.WriteByte('\n')
		}
	}

	return out.Bytes()
}

// rewriteURITag rewrites the URI attribute in tags such as #EXT-X-KEY,
// #EXT-X-MAP and #EXT-X-MEDIA.
func rewriteURITag(line string, rc *types.RewriteContext) string {
	start := strings.Index(line, "URI=\"")
	if start == -1 {
		return line
	}
	start += len("URI=\"")

	end := strings.Index(line[start:], "\"")
	if end == -1 {
		return line
	}

	uri := line[start : start+end]
	if uri == "" || strings.HasPrefix(uri, "data:") || strings.HasPrefix(uri, "skd:") {
		return line
	}
	return line[:start] + proxyReference(uri, rc) + line[start+end:]
}

func proxyReference(ref string, rc *types.RewriteContext) string {
	if urlutil.IsProxied(rc.ProxyRoot, ref) {
		return ref
	}
	return urlutil.ProxyURL(rc.ProxyRoot, urlutil.ResolveURL(ref, rc.BaseURL))
}

// Ensure HLSHandler implements StreamHandler.
var _ interfaces.StreamHandler = (*HLSHandler)(nil)
