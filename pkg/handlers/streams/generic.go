package streams

import (
	"context"
	"net/http"
	"path"
	"strings"

	"ytaudio-proxy/pkg/interfaces"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/types"
)

// passthroughHeaders are copied from upstream so players can seek.
var passthroughHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// GenericHandler streams media bytes back unchanged. It is registered as
// the fallback and accepts anything.
type GenericHandler struct {
	log *logging.Logger
}

// NewGenericHandler creates a new generic stream handler.
func NewGenericHandler(log *logging.Logger) *GenericHandler {
	return &GenericHandler{log: log.WithComponent("generic-handler")}
}

// Type returns the stream type.
func (h *GenericHandler) Type() types.StreamType {
	return types.StreamTypeGeneric
}

// CanHandle accepts every response.
func (h *GenericHandler) CanHandle(string, string) bool {
	return true
}

// Handle hands the upstream body to the caller, who must close it.
func (h *GenericHandler) Handle(ctx context.Context, resp *http.Response, rc *types.RewriteContext) (*types.StreamResponse, error) {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = guessContentType(rc.TargetURL)
	}

	headers := make(map[string]string, len(passthroughHeaders))
	for _, name := range passthroughHeaders {
		if v := resp.Header.Get(name); v != "" {
			headers[name] = v
		}
	}
	if _, ok := headers["Accept-Ranges"]; !ok && resp.StatusCode < http.StatusBadRequest {
		headers["Accept-Ranges"] = "bytes"
	}

	h.log.Debug("streaming upstream body",
		"url", rc.TargetURL,
		"status", resp.StatusCode,
		"content_type", contentType,
		"content_length", headers["Content-Length"])

	return &types.StreamResponse{
		Type:        types.StreamTypeGeneric,
		ContentType: contentType,
		Body:        resp.Body,
		StatusCode:  resp.StatusCode,
		Headers:     headers,
	}, nil
}

// guessContentType guesses the content type from the URL path extension.
func guessContentType(urlStr string) string {
	if i := strings.IndexAny(urlStr, "?#"); i >= 0 {
		urlStr = urlStr[:i]
	}

	contentTypes := map[string]string{
		".m4a":  "audio/mp4",
		".mp4":  "audio/mp4",
		".webm": "audio/webm",
		".weba": "audio/webm",
		".opus": "audio/ogg",
		".ogg":  "audio/ogg",
		".aac":  "audio/aac",
		".mp3":  "audio/mpeg",
		".ts":   "video/MP2T",
		".m4s":  "video/iso.segment",
	}

	if ct, ok := contentTypes[strings.ToLower(path.Ext(urlStr))]; ok {
		return ct
	}
	return "application/octet-stream"
}

var _ interfaces.StreamHandler = (*GenericHandler)(nil)
