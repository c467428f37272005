// Package api provides HTTP handlers for the search, stream and proxy API.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"ytaudio-proxy/pkg/appctx"
	"ytaudio-proxy/pkg/apperr"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/types"
	"ytaudio-proxy/pkg/urlutil"
)

const (
	serviceName = "ytaudio-proxy"
	version     = "1.0.0"

	copyBufferSize = 32 << 10
)

// Handlers contains all API handlers.
type Handlers struct {
	ctx      *appctx.Context
	log      *logging.Logger
	lookPath func(string) (string, error)
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx:      ctx,
		log:      ctx.Log.WithComponent("api"),
		lookPath: exec.LookPath,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /player", h.handlePlayer)

	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /stream/{videoId}", h.handleStream)
	mux.HandleFunc("GET /play", h.handlePlay)

	mux.HandleFunc("GET "+urlutil.ProxyPath, h.handleProxy)

	mux.Handle("GET /metrics", h.ctx.Metrics.Handler())
}

// handleSearch resolves q into a list of items. A missing q is an empty list.
func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeJSON(w, http.StatusOK, []types.SearchItem{})
		return
	}

	items := h.ctx.Search.Search(r.Context(), q)
	if items == nil {
		items = []types.SearchItem{}
	}
	h.writeJSON(w, http.StatusOK, items)
}

// handleStream resolves one video to a proxied audio URL.
func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")

	desc, err := h.ctx.Streams.GetStream(r.Context(), videoID, urlutil.RequestOrigin(r))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if !desc.Success {
		h.writeError(w, http.StatusNotFound, desc.Error)
		return
	}

	h.writeJSON(w, http.StatusOK, desc)
}

// handlePlay searches and resolves the stream of the first result.
func (h *Handlers) handlePlay(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	items := h.ctx.Search.Search(r.Context(), q)
	if len(items) == 0 {
		h.writeError(w, http.StatusNotFound, "no results found")
		return
	}
	video := items[0]

	desc, err := h.ctx.Streams.GetStream(r.Context(), video.ID, urlutil.RequestOrigin(r))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if !desc.Success {
		h.log.Warn("play failed", "query", q, "video_id", video.ID, "error", desc.Error)
		h.writeError(w, http.StatusInternalServerError, desc.Error)
		return
	}

	h.writeJSON(w, http.StatusOK, types.PlayResponse{Video: video, Stream: desc})
}

// handleProxy relays an upstream resource, rewriting manifests on the way.
func (h *Handlers) handleProxy(w http.ResponseWriter, r *http.Request) {
	req := &types.ProxyRequest{
		URL:       strings.TrimSpace(r.URL.Query().Get("url")),
		UserAgent: r.UserAgent(),
		Range:     r.Header.Get("Range"),
		ProxyRoot: urlutil.RequestOrigin(r),
	}

	resp, err := h.ctx.ProxyService.Proxy(r.Context(), req)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	h.writeStreamResponse(w, r, resp)
}

type healthResponse struct {
	Status        string      `json:"status"`
	Service       string      `json:"service"`
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	YtDlp         ytdlpStatus `json:"ytdlp"`
	Strategies    []string    `json:"strategies"`
	Instances     []string    `json:"instances"`
}

type ytdlpStatus struct {
	Path      string `json:"path"`
	Available bool   `json:"available"`
}

// handleHealth reports liveness plus a few diagnostics.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	exe := h.ctx.Config.YtDlpPath
	resolved, err := h.lookPath(exe)
	if err == nil {
		exe = resolved
	}

	instances := h.ctx.Instances
	if instances == nil {
		instances = []string{}
	}

	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:        "online",
		Service:       serviceName,
		Version:       version,
		UptimeSeconds: int64(h.ctx.Uptime().Seconds()),
		YtDlp:         ytdlpStatus{Path: exe, Available: err == nil},
		Strategies:    h.ctx.Streams.Strategies(),
		Instances:     instances,
	})
}

// handlePlayer serves the configured player page.
func (h *Handlers) handlePlayer(w http.ResponseWriter, r *http.Request) {
	path := h.ctx.Config.PlayerFile
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		h.writeError(w, http.StatusNotFound, "player not found")
		return
	}
	http.ServeFile(w, r, path)
}

// Helper methods

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps a classified error to its status code.
func (h *Handlers) writeAppError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "error", err, "status", status)
	} else {
		h.log.Debug("request rejected", "error", err, "status", status)
	}
	h.writeError(w, status, apperr.Message(err))
}

func (h *Handlers) writeStreamResponse(w http.ResponseWriter, r *http.Request, resp *types.StreamResponse) {
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)

	if resp.Body == nil {
		return
	}

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(w, resp.Body, buf)
	h.ctx.Metrics.AddProxyBytes(n)
	if err != nil && r.Context().Err() == nil {
		h.log.Debug("proxy copy ended early", "url", r.URL.Query().Get("url"), "bytes", n, "error", err)
	}
}
