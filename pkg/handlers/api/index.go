package api

import (
	"fmt"
	"html"
	"net/http"
	"strings"
)

type endpoint struct {
	path string
	desc string
}

var endpoints = []endpoint{
	{"/search?q=...", "Search for tracks, or expand a video or playlist link"},
	{"/stream/{videoId}", "Resolve a proxied audio URL"},
	{"/play?q=...", "Search and resolve the first result"},
	{"/proxy?url=...", "Relay media bytes and rewrite HLS playlists"},
	{"/player", "Web player"},
	{"/health", "Server status (JSON)"},
	{"/metrics", "Prometheus metrics"},
}

// handleIndex serves the landing page.
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	var rows strings.Builder
	for _, e := range endpoints {
		fmt.Fprintf(&rows, `
                <div class="endpoint">
                    <span class="endpoint-method">GET</span>
                    <span class="endpoint-path">%s</span>
                    <span class="endpoint-desc">%s</span>
                </div>`, html.EscapeString(e.path), html.EscapeString(e.desc))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>YTAudio Proxy</title>
    <style>
        :root {
            --bg-primary: #0f0f0f;
            --bg-secondary: #1a1a1a;
            --bg-card: #242424;
            --text-primary: #ffffff;
            --text-secondary: #a0a0a0;
            --accent: #ef4444;
            --success: #22c55e;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
        }
        .container { max-width: 900px; margin: 0 auto; padding: 40px 20px; }
        header { text-align: center; margin-bottom: 40px; }
        h1 { font-size: 2.5rem; font-weight: 700; margin-bottom: 8px; }
        .status {
            display: inline-block;
            background: rgba(34, 197, 94, 0.1);
            color: var(--success);
            padding: 6px 14px;
            border-radius: 20px;
            font-size: 0.9rem;
        }
        .section { background: var(--bg-secondary); border-radius: 16px; padding: 32px; }
        .section h2 { font-size: 1.25rem; margin-bottom: 20px; }
        .endpoints { display: flex; flex-direction: column; gap: 12px; }
        .endpoint {
            display: flex;
            gap: 12px;
            padding: 12px 16px;
            background: var(--bg-card);
            border-radius: 8px;
            font-family: 'SF Mono', Monaco, monospace;
            font-size: 0.85rem;
        }
        .endpoint-method {
            background: var(--accent);
            padding: 2px 8px;
            border-radius: 4px;
            font-weight: 600;
            font-size: 0.75rem;
        }
        .endpoint-path { flex: 1; }
        .endpoint-desc { color: var(--text-secondary); font-family: -apple-system, sans-serif; }
        footer { text-align: center; padding: 24px; color: var(--text-secondary); font-size: 0.85rem; }
        footer a { color: var(--accent); text-decoration: none; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>YTAudio Proxy</h1>
            <div class="status">Server Running</div>
        </header>
        <div class="section">
            <h2>API Endpoints</h2>
            <div class="endpoints">%s
            </div>
        </div>
        <footer>
            <a href="/player">Open player</a> · <a href="/health">Status</a> · Version %s
        </footer>
    </div>
</body>
</html>`, rows.String(), version)
}
