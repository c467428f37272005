package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kkdai/youtube/v2"

	"ytaudio-proxy/pkg/duration"
	"ytaudio-proxy/pkg/extraction"
	"ytaudio-proxy/pkg/invidious"
	"ytaudio-proxy/pkg/query"
	"ytaudio-proxy/pkg/types"
)

// Strategy names.
const (
	NameDirect    = "direct"
	NameInvidious = "invidious"
	NameFallback  = "fallback"
	NameNative    = "native"
)

// ErrNoAudio is returned when a source answered but offered no audio URL.
var ErrNoAudio = errors.New("no audio format available")

// Extractor resolves a reference through the extraction engine.
type Extractor interface {
	Resolve(ctx context.Context, reference string, opts extraction.Options) (*types.ExtractedInfo, error)
}

// ExtractorStrategy resolves through the extraction engine with a fixed
// option profile. The direct and fallback strategies differ only in options.
type ExtractorStrategy struct {
	name      string
	extractor Extractor
	opts      extraction.Options
}

// NewDirectStrategy uses the default option profile with retries.
func NewDirectStrategy(ex Extractor) *ExtractorStrategy {
	return &ExtractorStrategy{name: NameDirect, extractor: ex, opts: extraction.DefaultOptions()}
}

// NewFallbackStrategy uses the last-resort option profile without retries.
func NewFallbackStrategy(ex Extractor) *ExtractorStrategy {
	return &ExtractorStrategy{name: NameFallback, extractor: ex, opts: extraction.FallbackOptions()}
}

func (s *ExtractorStrategy) Name() string { return s.name }

func (s *ExtractorStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	info, err := s.extractor.Resolve(ctx, query.WatchURL(videoID), s.opts)
	if err != nil {
		return nil, err
	}
	audio := extraction.PickAudioURL(info)
	if audio == "" {
		return nil, ErrNoAudio
	}

	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}
	return &types.Resolution{
		AudioURL:  audio,
		Title:     info.Title,
		Duration:  duration.Seconds(info.Duration),
		Thumbnail: info.Thumbnail,
		Channel:   channel,
	}, nil
}

// InvidiousStrategy resolves through the Invidious video API.
type InvidiousStrategy struct {
	client *invidious.Client
}

// NewInvidiousStrategy wraps an Invidious client.
func NewInvidiousStrategy(client *invidious.Client) *InvidiousStrategy {
	return &InvidiousStrategy{client: client}
}

func (s *InvidiousStrategy) Name() string { return NameInvidious }

func (s *InvidiousStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	v, err := s.client.Video(ctx, videoID)
	if err != nil {
		return nil, err
	}
	best := v.BestAudio()
	if best == nil {
		return nil, ErrNoAudio
	}
	return &types.Resolution{
		AudioURL:  best.URL,
		Title:     v.Title,
		Duration:  v.LengthSeconds,
		Thumbnail: v.Thumbnail(),
		Channel:   v.Author,
	}, nil
}

// VideoClient is the subset of *youtube.Client used by NativeStrategy.
type VideoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// NativeStrategy resolves in-process with a Go implementation of the
// player API, so it keeps working when the engine binary is missing.
type NativeStrategy struct {
	client VideoClient
}

// NewNativeStrategy wraps a player API client.
func NewNativeStrategy(client VideoClient) *NativeStrategy {
	return &NativeStrategy{client: client}
}

func (s *NativeStrategy) Name() string { return NameNative }

func (s *NativeStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return nil, ErrNoAudio
	}

	audio, err := s.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("get stream url: %w", err)
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[len(video.Thumbnails)-1].URL
	}
	return &types.Resolution{
		AudioURL:  audio,
		Title:     video.Title,
		Duration:  int(video.Duration.Seconds()),
		Thumbnail: thumbnail,
		Channel:   video.Author,
	}, nil
}

// bestAudioFormat returns the audio-only format with the highest bitrate.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}
