package flaresolverr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ytaudio-proxy/pkg/logging"
)

func TestClient_Get_Success(t *testing.T) {
	expected := Response{
		Status:  "ok",
		Message: "Challenge solved!",
		Solution: Solution{
			URL:       "https://yewtu.be/api/v1/search?q=lofi",
			Status:    200,
			Response:  `[{"videoId":"abc"}]`,
			UserAgent: "Mozilla/5.0 Test",
			Cookies:   []Cookie{{Name: "cf_clearance", Value: "token", Domain: ".yewtu.be"}},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1" {
			t.Errorf("expected path /v1, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Cmd != "request.get" {
			t.Errorf("expected cmd request.get, got %s", req.Cmd)
		}
		if req.MaxTimeout != 30000 {
			t.Errorf("expected maxTimeout 30000, got %d", req.MaxTimeout)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expected)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 30*time.Second, logging.Discard())

	resp, err := client.Get(context.Background(), expected.Solution.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Solution.Response != expected.Solution.Response {
		t.Errorf("response mismatch: %q", resp.Solution.Response)
	}
	if len(resp.Solution.Cookies) != 1 || resp.Solution.Cookies[0].Name != "cf_clearance" {
		t.Errorf("unexpected cookies: %+v", resp.Solution.Cookies)
	}
}

func TestClient_Get_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Status: "error", Message: "Cloudflare challenge failed"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second, logging.Discard())

	_, err := client.Get(context.Background(), "https://yewtu.be")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "FlareSolverr error: Cloudflare challenge failed" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestClient_Get_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second, logging.Discard())

	if _, err := client.Get(context.Background(), "https://yewtu.be"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{
			Status: "ok",
			Solution: Solution{
				Status:   200,
				Response: `<html><head></head><body><pre style="word-wrap: break-word;">{"title":"Tom &amp; Jerry"}</pre></body></html>`,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second, logging.Discard())

	body, err := client.GetJSON(context.Background(), "https://yewtu.be/api/v1/videos/abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"title":"Tom & Jerry"}` {
		t.Errorf("GetJSON() = %q", body)
	}
}

func TestClient_GetJSON_UpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Status: "ok", Solution: Solution{Status: 403, Response: "denied"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second, logging.Discard())

	if _, err := client.GetJSON(context.Background(), "https://yewtu.be/api/v1/videos/abc"); err == nil {
		t.Fatal("expected error for upstream 403")
	}
}

func TestUnwrapBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", ` {"a":1} `, `{"a":1}`},
		{"pre wrapped", `<html><body><pre>[1,2]</pre></body></html>`, `[1,2]`},
		{"pre with attributes", `<pre class="x">&lt;ok&gt;</pre>`, `<ok>`},
		{"unterminated pre", `<pre>{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnwrapBody(tt.in); got != tt.want {
				t.Errorf("UnwrapBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_IsConfigured(t *testing.T) {
	log := logging.Discard()

	if !NewClient("http://localhost:8191", 30*time.Second, log).IsConfigured() {
		t.Error("expected client to be configured")
	}
	if NewClient("", 30*time.Second, log).IsConfigured() {
		t.Error("expected empty client to not be configured")
	}

	var nilClient *Client
	if nilClient.IsConfigured() {
		t.Error("nil client must not be configured")
	}
}
