package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"ytaudio-proxy/pkg/appctx"
	"ytaudio-proxy/pkg/apperr"
	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/metrics"
	"ytaudio-proxy/pkg/types"
)

type fakeSearch struct {
	items []types.SearchItem
	calls atomic.Int32
}

func (f *fakeSearch) Search(ctx context.Context, raw string) []types.SearchItem {
	f.calls.Add(1)
	return f.items
}

type fakeStreams struct {
	desc   types.StreamDescriptor
	err    error
	calls  atomic.Int32
	origin string
}

func (f *fakeStreams) GetStream(ctx context.Context, videoID, origin string) (types.StreamDescriptor, error) {
	f.calls.Add(1)
	f.origin = origin
	return f.desc, f.err
}

func (f *fakeStreams) Strategies() []string { return []string{"direct", "invidious", "fallback"} }

type fakeProxy struct {
	resp *types.StreamResponse
	err  error
	req  *types.ProxyRequest
}

func (f *fakeProxy) Proxy(ctx context.Context, req *types.ProxyRequest) (*types.StreamResponse, error) {
	f.req = req
	return f.resp, f.err
}

type fixture struct {
	search  *fakeSearch
	streams *fakeStreams
	proxy   *fakeProxy
	mux     *http.ServeMux
	h       *Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{YtDlpPath: "yt-dlp", PlayerFile: filepath.Join(t.TempDir(), "index.html")}
	f := &fixture{
		search:  &fakeSearch{},
		streams: &fakeStreams{},
		proxy:   &fakeProxy{},
		mux:     http.NewServeMux(),
	}

	ctx := appctx.New(cfg, logging.Discard()).
		WithMetrics(metrics.New()).
		WithSearch(f.search).
		WithStreams(f.streams).
		WithProxyService(f.proxy).
		WithInstances([]string{"https://inv.example"})

	f.h = NewHandlers(ctx)
	f.h.lookPath = func(string) (string, error) { return "/usr/bin/yt-dlp", nil }
	f.h.RegisterRoutes(f.mux)
	return f
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestHandleSearch(t *testing.T) {
	t.Run("missing q returns empty array", func(t *testing.T) {
		f := newFixture(t)
		rec := f.get("/search")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("body = %q, want []", rec.Body.String())
		}
		if f.search.calls.Load() != 0 {
			t.Error("resolver should not be called without q")
		}
	})

	t.Run("returns items", func(t *testing.T) {
		f := newFixture(t)
		f.search.items = []types.SearchItem{{ID: "dQw4w9WgXcQ", Title: "Song", Duration: "3:33", DurationSeconds: 213, IsVideo: true}}

		rec := f.get("/search?q=song")
		var items []types.SearchItem
		if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 || items[0].ID != "dQw4w9WgXcQ" {
			t.Errorf("items = %+v", items)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("nil result is encoded as empty array", func(t *testing.T) {
		f := newFixture(t)
		rec := f.get("/search?q=nothing")
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})
}

func TestHandleStream(t *testing.T) {
	tests := []struct {
		name       string
		desc       types.StreamDescriptor
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			desc:       types.StreamDescriptor{Success: true, AudioURL: "http://example.com/proxy?url=x", Strategy: "direct"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "all strategies failed",
			desc:       types.StreamDescriptor{Success: false, Error: "all strategies failed: blocked"},
			wantStatus: http.StatusNotFound,
			wantError:  "all strategies failed: blocked",
		},
		{
			name:       "invalid id",
			err:        apperr.New(apperr.KindInput, "stream.GetStream", "invalid video id"),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid video id",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.streams.desc = tt.desc
			f.streams.err = tt.err

			rec := f.get("/stream/dQw4w9WgXcQ")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantError != "" {
				if got := decodeError(t, rec); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
			}
			if f.streams.origin != "http://example.com" {
				t.Errorf("origin = %q", f.streams.origin)
			}
		})
	}
}

func TestHandlePlay(t *testing.T) {
	t.Run("missing q", func(t *testing.T) {
		f := newFixture(t)
		rec := f.get("/play")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("no results skips stream resolution", func(t *testing.T) {
		f := newFixture(t)
		rec := f.get("/play?q=nothing")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
		if f.streams.calls.Load() != 0 {
			t.Error("stream resolution must not run without search results")
		}
	})

	t.Run("stream failure", func(t *testing.T) {
		f := newFixture(t)
		f.search.items = []types.SearchItem{{ID: "dQw4w9WgXcQ"}}
		f.streams.desc = types.StreamDescriptor{Error: "all strategies failed"}

		rec := f.get("/play?q=song")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("success composes first result and stream", func(t *testing.T) {
		f := newFixture(t)
		f.search.items = []types.SearchItem{{ID: "first123456"}, {ID: "second12345"}}
		f.streams.desc = types.StreamDescriptor{Success: true, AudioURL: "http://example.com/proxy?url=a"}

		rec := f.get("/play?q=song")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body types.PlayResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Video.ID != "first123456" || !body.Stream.Success {
			t.Errorf("body = %+v", body)
		}
	})
}

func TestHandleProxy(t *testing.T) {
	t.Run("error mapping", func(t *testing.T) {
		cases := map[apperr.Kind]int{
			apperr.KindInput:    http.StatusBadRequest,
			apperr.KindUpstream: http.StatusBadGateway,
			apperr.KindManifest: http.StatusInternalServerError,
		}
		for kind, want := range cases {
			f := newFixture(t)
			f.proxy.err = apperr.New(kind, "services.Proxy", "failed")
			rec := f.get("/proxy?url=x")
			if rec.Code != want {
				t.Errorf("kind %v: status = %d, want %d", kind, rec.Code, want)
			}
		}
	})

	t.Run("streams body and headers", func(t *testing.T) {
		f := newFixture(t)
		f.proxy.resp = &types.StreamResponse{
			Type:        types.StreamTypeGeneric,
			ContentType: "audio/webm",
			StatusCode:  http.StatusPartialContent,
			Headers:     map[string]string{"Content-Range": "bytes 0-4/10"},
			Body:        io.NopCloser(strings.NewReader("hello")),
		}

		req := httptest.NewRequest(http.MethodGet, "/proxy?url=https%3A%2F%2Fcdn.example%2Fa.webm%3Fx%3D1", nil)
		req.Header.Set("Range", "bytes=0-4")
		req.Header.Set("User-Agent", "test-agent")
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusPartialContent {
			t.Errorf("status = %d", rec.Code)
		}
		if rec.Body.String() != "hello" {
			t.Errorf("body = %q", rec.Body.String())
		}
		if rec.Header().Get("Content-Range") != "bytes 0-4/10" || rec.Header().Get("Content-Type") != "audio/webm" {
			t.Errorf("headers = %v", rec.Header())
		}
		if f.proxy.req.URL != "https://cdn.example/a.webm?x=1" {
			t.Errorf("decoded url = %q", f.proxy.req.URL)
		}
		if f.proxy.req.Range != "bytes=0-4" || f.proxy.req.UserAgent != "test-agent" {
			t.Errorf("forwarded request = %+v", f.proxy.req)
		}
		if f.proxy.req.ProxyRoot != "http://example.com" {
			t.Errorf("ProxyRoot = %q", f.proxy.req.ProxyRoot)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "online" || body.Service != serviceName || body.Version != version {
		t.Errorf("body = %+v", body)
	}
	if !body.YtDlp.Available || body.YtDlp.Path != "/usr/bin/yt-dlp" {
		t.Errorf("ytdlp = %+v", body.YtDlp)
	}
	if len(body.Strategies) != 3 || len(body.Instances) != 1 {
		t.Errorf("strategies = %v, instances = %v", body.Strategies, body.Instances)
	}
}

func TestHandleHealthMissingYtDlp(t *testing.T) {
	f := newFixture(t)
	f.h.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	var body healthResponse
	json.NewDecoder(f.get("/health").Body).Decode(&body)
	if body.YtDlp.Available || body.YtDlp.Path != "yt-dlp" {
		t.Errorf("ytdlp = %+v", body.YtDlp)
	}
}

func TestHandlePlayer(t *testing.T) {
	f := newFixture(t)

	if rec := f.get("/player"); rec.Code != http.StatusNotFound {
		t.Errorf("missing player: status = %d, want 404", rec.Code)
	}

	if err := os.WriteFile(f.h.ctx.Config.PlayerFile, []byte("<html>player</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := f.get("/player")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "player") {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestHandleIndex(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, e := range endpoints {
		if !strings.Contains(rec.Body.String(), strings.Split(e.path, "?")[0]) {
			t.Errorf("landing page missing %s", e.path)
		}
	}

	if rec := f.get("/does-not-exist"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}
