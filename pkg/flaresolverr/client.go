// Package flaresolverr fetches pages through a FlareSolverr instance when an
// upstream answers with a Cloudflare challenge instead of content.
package flaresolverr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"ytaudio-proxy/pkg/logging"
)

// Cookie represents a cookie from a FlareSolverr solution.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// Solution contains the result of a solved request.
type Solution struct {
	URL       string   `json:"url"`
	Status    int      `json:"status"`
	Response  string   `json:"response"`
	Cookies   []Cookie `json:"cookies"`
	UserAgent string   `json:"userAgent"`
}

// Response is the full response from the FlareSolverr API.
type Response struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Version  string   `json:"version"`
	Solution Solution `json:"solution"`
}

// Request is the request body for the FlareSolverr API.
type Request struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

// Client is a FlareSolverr API client. A zero baseURL disables it.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a new FlareSolverr client.
func NewClient(baseURL string, timeout time.Duration, log *logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout + 10*time.Second, // buffer for network overhead
		},
		log: log.WithComponent("flaresolverr"),
	}
}

// IsConfigured reports whether a FlareSolverr endpoint was set.
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

// Get fetches targetURL through FlareSolverr.
func (c *Client) Get(ctx context.Context, targetURL string) (*Response, error) {
	c.log.Debug("fetching URL via FlareSolverr", "url", targetURL)

	body, err := json.Marshal(Request{
		Cmd:        "request.get",
		URL:        targetURL,
		MaxTimeout: int(c.timeout.Milliseconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FlareSolverr returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var fsResp Response
	if err := json.Unmarshal(respBody, &fsResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if fsResp.Status != "ok" {
		return nil, fmt.Errorf("FlareSolverr error: %s", fsResp.Message)
	}

	c.log.Debug("FlareSolverr request successful",
		"url", targetURL,
		"status", fsResp.Solution.Status,
		"response_length", len(fsResp.Solution.Response))

	return &fsResp, nil
}

// GetJSON fetches targetURL through FlareSolverr and returns the raw JSON
// document. The headless browser renders JSON inside an HTML page, so the
// <pre> wrapper it adds is removed first.
func (c *Client) GetJSON(ctx context.Context, targetURL string) ([]byte, error) {
	resp, err := c.Get(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	if resp.Solution.Status != 0 && resp.Solution.Status != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.Solution.Status)
	}
	return []byte(UnwrapBody(resp.Solution.Response)), nil
}

// UnwrapBody strips the HTML document a browser builds around a plain-text
// response, returning the unescaped text of the first <pre> element.
// Bodies without a <pre> element are returned trimmed.
func UnwrapBody(body string) string {
	start := strings.Index(body, "<pre")
	if start < 0 {
		return strings.TrimSpace(body)
	}
	open := strings.Index(body[start:], ">")
	if open < 0 {
		return strings.TrimSpace(body)
	}
	content := body[start+open+1:]
	if end := strings.Index(content, "</pre>"); end >= 0 {
		content = content[:end]
	}
	return strings.TrimSpace(html.UnescapeString(content))
}
