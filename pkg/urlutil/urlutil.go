// Package urlutil provides URL manipulation utilities that preserve original encoding.
package urlutil

import (
	"net/http"
	"net/url"
	"strings"
)

// ProxyPath is the endpoint every proxied reference points at.
const ProxyPath = "/proxy"

// IsHTTPURL reports whether s is an absolute http(s) URL.
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ResolveURL resolves a potentially relative URL against a base URL.
// Uses string manipulation to preserve original URL encoding.
// Go's url.ResolveReference re-encodes special characters which breaks
// signed media URLs whose signatures cover the exact path bytes.
func ResolveURL(urlStr string, baseURL string) string {
	if IsHTTPURL(urlStr) {
		return urlStr
	}

	if strings.HasPrefix(urlStr, "//") {
		scheme := "https"
		if parsed, err := url.Parse(baseURL); err == nil && parsed.Scheme != "" {
			scheme = parsed.Scheme
		}
		return scheme + ":" + urlStr
	}

	base := GetBaseDirectory(baseURL)

	if strings.HasPrefix(urlStr, "/") {
		// Absolute path - combine with scheme+host from base
		if sh := GetSchemeHost(baseURL); sh != "" {
			return sh + urlStr
		}
		return base + strings.TrimPrefix(urlStr, "/")
	}

	remaining := urlStr
	for strings.HasPrefix(remaining, "./") {
		remaining = remaining[2:]
	}

	// Handle parent directory references
	result := base
	for strings.HasPrefix(remaining, "../") {
		remaining = remaining[3:]
		result = strings.TrimSuffix(result, "/")
		if lastSlash := strings.LastIndex(result, "/"); lastSlash > len("https://") {
			result = result[:lastSlash+1]
		} else {
			result += "/"
		}
	}

	return result + remaining
}

// GetBaseDirectory returns the directory portion of a URL (without the filename).
// Preserves original encoding.
func GetBaseDirectory(urlStr string) string {
	// Remove query string and fragment
	if idx := strings.IndexAny(urlStr, "?#"); idx > 0 {
		urlStr = urlStr[:idx]
	}
	schemeEnd := strings.Index(urlStr, "://")
	if schemeEnd >= 0 && strings.LastIndex(urlStr, "/") <= schemeEnd+2 {
		// Bare origin such as https://host
		return urlStr + "/"
	}
	if lastSlash := strings.LastIndex(urlStr, "/"); lastSlash > 0 {
		return urlStr[:lastSlash+1]
	}
	return urlStr
}

// GetSchemeHost extracts scheme://host from a URL.
func GetSchemeHost(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// RequestOrigin returns scheme://host of this server as the client addressed it.
func RequestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}

// ProxyURL returns the proxy endpoint URL carrying target as its url parameter.
func ProxyURL(proxyRoot, target string) string {
	return strings.TrimRight(proxyRoot, "/") + ProxyPath + "?url=" + url.QueryEscape(target)
}

// IsProxied reports whether ref is a proxy URL built by ProxyURL for proxyRoot.
// Upstream paths that merely look like /proxy?... are not ours.
func IsProxied(proxyRoot, ref string) bool {
	return strings.HasPrefix(ref, strings.TrimRight(proxyRoot, "/")+ProxyPath+"?url=")
}
