// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	// Server settings
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	PlayerFile   string

	// Extraction (yt-dlp)
	YtDlpPath         string
	ExtractAttempts   int
	ExtractBackoffMin time.Duration
	ExtractBackoffMax time.Duration
	ExtractRate       float64
	ExtractBurst      int
	UserAgents        []string

	// Alternate metadata sources
	InvidiousInstances []string
	InvidiousTimeout   time.Duration
	YouTubeAPIKey      string
	NativeFallback     bool
	DisabledStrategies []string

	// Search
	SearchLimit       int
	PlaylistLimit     int
	SearchPlaceholder bool

	// Manifest proxy
	ProxyTimeout   time.Duration
	ProxyUserAgent string

	// Upstream routing
	GlobalProxies   []string
	TransportRoutes []TransportRoute
	UTLSDomains     []string

	// FlareSolverr settings (for Cloudflare-challenged Invidious instances)
	FlareSolverrURL     string
	FlareSolverrTimeout time.Duration

	// Logging
	LogLevel string
	LogJSON  bool
}

// TransportRoute defines URL-specific proxy routing.
type TransportRoute struct {
	URLPattern string
	Proxy      string
	DisableSSL bool
	Direct     bool // If true, bypass global proxy and connect directly
}

// DefaultUserAgents is the header-profile pool used when USER_AGENTS is unset.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
}

// DefaultInvidiousInstances are tried in order for alternate search and streams.
var DefaultInvidiousInstances = []string{
	"https://inv.riverside.rocks",
	"https://invidious.snopyta.org",
	"https://yewtu.be",
	"https://invidious.kanicloud.com",
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		Host:                getEnvString("HOST", "0.0.0.0"),
		Port:                getEnvInt("PORT", 3000),
		ReadTimeout:         getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        getEnvDuration("WRITE_TIMEOUT", 0),
		IdleTimeout:         getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		PlayerFile:          getEnvString("PLAYER_FILE", "index.html"),
		YtDlpPath:           getEnvString("YTDLP_PATH", "yt-dlp"),
		ExtractAttempts:     getEnvInt("EXTRACT_ATTEMPTS", 3),
		ExtractBackoffMin:   getEnvDuration("EXTRACT_BACKOFF_MIN", 1*time.Second),
		ExtractBackoffMax:   getEnvDuration("EXTRACT_BACKOFF_MAX", 3*time.Second),
		ExtractRate:         getEnvFloat("EXTRACT_RATE", 2),
		ExtractBurst:        getEnvInt("EXTRACT_BURST", 4),
		UserAgents:          getEnvStringSlice("USER_AGENTS", DefaultUserAgents),
		InvidiousInstances:  getEnvStringSlice("INVIDIOUS_INSTANCES", DefaultInvidiousInstances),
		InvidiousTimeout:    getEnvDuration("INVIDIOUS_TIMEOUT", 10*time.Second),
		YouTubeAPIKey:       os.Getenv("YOUTUBE_API_KEY"),
		NativeFallback:      getEnvBool("NATIVE_FALLBACK", true),
		DisabledStrategies:  getEnvStringSlice("DISABLED_STRATEGIES", nil),
		SearchLimit:         getEnvInt("SEARCH_LIMIT", 10),
		PlaylistLimit:       getEnvInt("PLAYLIST_LIMIT", 50),
		SearchPlaceholder:   getEnvBool("SEARCH_PLACEHOLDER", true),
		ProxyTimeout:        getEnvDuration("PROXY_TIMEOUT", 15*time.Second),
		ProxyUserAgent:      getEnvString("PROXY_USER_AGENT", "ytaudio-proxy/1.0"),
		GlobalProxies:       getEnvStringSlice("GLOBAL_PROXIES", nil),
		UTLSDomains:         getEnvStringSlice("UTLS_DOMAINS", nil),
		FlareSolverrURL:     getEnvString("FLARESOLVERR_URL", ""),
		FlareSolverrTimeout: getEnvDuration("FLARESOLVERR_TIMEOUT", 60*time.Second),
		LogLevel:            getEnvString("LOG_LEVEL", "info"),
		LogJSON:             getEnvBool("LOG_JSON", false),
	}

	cfg.TransportRoutes = parseTransportRoutes(os.Getenv("TRANSPORT_ROUTES"))

	// Legacy single proxy support
	if globalProxy := os.Getenv("GLOBAL_PROXY"); globalProxy != "" && len(cfg.GlobalProxies) == 0 {
		cfg.GlobalProxies = []string{globalProxy}
	}

	cfg.normalize()
	return cfg
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// normalize clamps values that would break the resolvers.
func (c *Config) normalize() {
	if c.ExtractAttempts < 1 {
		c.ExtractAttempts = 1
	}
	if c.ExtractBackoffMax < c.ExtractBackoffMin {
		c.ExtractBackoffMax = c.ExtractBackoffMin
	}
	if c.SearchLimit < 1 {
		c.SearchLimit = 10
	}
	if c.PlaylistLimit < 1 {
		c.PlaylistLimit = 50
	}
	if c.ExtractBurst < 1 {
		c.ExtractBurst = 1
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents
	}
	for i, inst := range c.InvidiousInstances {
		c.InvidiousInstances[i] = strings.TrimRight(inst, "/")
	}
}

// parseTransportRoutes parses the TRANSPORT_ROUTES env var.
// Format: {URL=pattern, PROXY=url, DISABLE_SSL=true}, {URL=pattern2}
func parseTransportRoutes(s string) []TransportRoute {
	if s == "" {
		return nil
	}

	var routes []TransportRoute
	s = strings.TrimSpace(s)

	parts := strings.Split(s, "}, {")
	for _, part := range parts {
		part = strings.Trim(part, "{} ")
		if part == "" {
			continue
		}

		route := TransportRoute{}
		for _, field := range strings.Split(part, ", ") {
			kv := strings.SplitN(field, "=", 2)
			if len(kv) != 2 {
				continue
			}
			value := strings.TrimSpace(kv[1])

			switch strings.ToUpper(strings.TrimSpace(kv[0])) {
			case "URL":
				route.URLPattern = value
			case "PROXY":
				route.Proxy = value
			case "DISABLE_SSL":
				route.DisableSSL = strings.ToLower(value) == "true"
			case "DIRECT":
				route.Direct = strings.ToLower(value) == "true"
			}
		}
		if route.URLPattern != "" {
			routes = append(routes, route)
		}
	}

	return routes
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Try parsing as seconds first
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	if defaultVal == nil {
		return nil
	}
	return append([]string(nil), defaultVal...)
}
