package extraction

import "strings"

// Format selectors understood by the extraction engine.
const (
	FormatBestAudio = "bestaudio/best"
	FormatBest      = "best"
)

// GeoBypassCountry is the country the engine pretends to be in when
// GeoBypass is set.
const GeoBypassCountry = "US"

// Options tunes a single extraction call.
type Options struct {
	PreferredFormat string
	Flat            bool // list playlist/search entries without resolving each one
	GeoBypass       bool
	ClientProfiles  []string // upstream player clients to impersonate, in order
	SkipSignals     []string // upstream steps the engine may skip
	NoRetry         bool
}

// DefaultOptions is the first-choice profile for stream and metadata lookups.
func DefaultOptions() Options {
	return Options{
		PreferredFormat: FormatBestAudio,
		GeoBypass:       true,
		ClientProfiles:  []string{"android", "web"},
		SkipSignals:     []string{"configs", "webpage"},
	}
}

// FallbackOptions is the last-resort profile: more client types, more
// skipped steps and a single attempt.
func FallbackOptions() Options {
	return Options{
		PreferredFormat: FormatBestAudio,
		GeoBypass:       true,
		ClientProfiles:  []string{"android", "ios", "web"},
		SkipSignals:     []string{"configs", "webpage", "js"},
		NoRetry:         true,
	}
}

// FlatOptions returns DefaultOptions listing entries without resolving them.
func FlatOptions() Options {
	o := DefaultOptions()
	o.Flat = true
	return o
}

// ExtractorArgs renders the engine's youtube extractor arguments,
// e.g. "youtube:player_client=android,web;player_skip=configs,webpage".
// Empty when neither list is set.
func (o Options) ExtractorArgs() string {
	var parts []string
	if len(o.ClientProfiles) > 0 {
		parts = append(parts, "player_client="+strings.Join(o.ClientProfiles, ","))
	}
	if len(o.SkipSignals) > 0 {
		parts = append(parts, "player_skip="+strings.Join(o.SkipSignals, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return "youtube:" + strings.Join(parts, ";")
}

func (o Options) format() string {
	if o.PreferredFormat == "" {
		return FormatBestAudio
	}
	return o.PreferredFormat
}
