package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/extraction"
	"ytaudio-proxy/pkg/httpclient"
	"ytaudio-proxy/pkg/invidious"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/types"
)

type recordingExtractor struct {
	ref  string
	opts extraction.Options
	info *types.ExtractedInfo
	err  error
}

func (e *recordingExtractor) Resolve(_ context.Context, ref string, opts extraction.Options) (*types.ExtractedInfo, error) {
	e.ref, e.opts = ref, opts
	return e.info, e.err
}

func TestDirectStrategy(t *testing.T) {
	ex := &recordingExtractor{info: &types.ExtractedInfo{
		Title:    "Song",
		Duration: 212.7,
		Uploader: "Uploader",
		Formats: []*types.ExtractedFormat{
			{URL: "https://muxed", ACodec: "mp4a", VCodec: "avc1"},
			{URL: "https://audio", ACodec: "opus", VCodec: "none"},
		},
	}}

	res, err := NewDirectStrategy(ex).Resolve(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ex.ref)
	assert.False(t, ex.opts.NoRetry)
	assert.Equal(t, "https://audio", res.AudioURL)
	assert.Equal(t, 212, res.Duration)
	assert.Equal(t, "Uploader", res.Channel)
}

func TestFallbackStrategyOptions(t *testing.T) {
	ex := &recordingExtractor{info: &types.ExtractedInfo{URL: "https://top", Channel: "Channel"}}

	s := NewFallbackStrategy(ex)
	assert.Equal(t, NameFallback, s.Name())

	res, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.True(t, ex.opts.NoRetry)
	assert.Equal(t, []string{"configs", "webpage", "js"}, ex.opts.SkipSignals)
	assert.Equal(t, "Channel", res.Channel)
}

func TestExtractorStrategyErrors(t *testing.T) {
	_, err := NewDirectStrategy(&recordingExtractor{err: errors.New("boom")}).Resolve(context.Background(), "x")
	assert.EqualError(t, err, "boom")

	_, err = NewDirectStrategy(&recordingExtractor{info: &types.ExtractedInfo{}}).Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestInvidiousStrategy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Song","author":"Artist","lengthSeconds":200,
			"videoThumbnails":[{"url":"https://thumb"}],
			"adaptiveFormats":[{"url":"https://a/low","type":"audio/mp4","bitrate":"48000"},{"url":"https://a/high","type":"audio/webm","bitrate":"160000"}]}`))
	}))
	defer server.Close()

	cfg := &config.Config{InvidiousInstances: []string{server.URL}, InvidiousTimeout: time.Second}
	client := invidious.NewClient(cfg, httpclient.New(cfg, logging.Discard()), nil, logging.Discard())

	res, err := NewInvidiousStrategy(client).Resolve(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, &types.Resolution{
		AudioURL:  "https://a/high",
		Title:     "Song",
		Duration:  200,
		Thumbnail: "https://thumb",
		Channel:   "Artist",
	}, res)
}

type fakeVideoClient struct {
	video     *youtube.Video
	err       error
	gotFormat *youtube.Format
}

func (f *fakeVideoClient) GetVideoContext(_ context.Context, id string) (*youtube.Video, error) {
	return f.video, f.err
}

func (f *fakeVideoClient) GetStreamURLContext(_ context.Context, _ *youtube.Video, format *youtube.Format) (string, error) {
	f.gotFormat = format
	return "https://native/" + format.MimeType, nil
}

func TestNativeStrategy(t *testing.T) {
	client := &fakeVideoClient{video: &youtube.Video{
		Title:    "Song",
		Author:   "Artist",
		Duration: 212 * time.Second,
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: "video/mp4", Bitrate: 500000},
			{ItagNo: 140, MimeType: "audio/mp4", Bitrate: 130000},
			{ItagNo: 251, MimeType: "audio/webm", Bitrate: 150000},
		},
		Thumbnails: youtube.Thumbnails{{URL: "https://small"}, {URL: "https://large"}},
	}}

	res, err := NewNativeStrategy(client).Resolve(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, 251, client.gotFormat.ItagNo)
	assert.Equal(t, "https://native/audio/webm", res.AudioURL)
	assert.Equal(t, 212, res.Duration)
	assert.Equal(t, "https://large", res.Thumbnail)
}

func TestNativeStrategyNoAudio(t *testing.T) {
	client := &fakeVideoClient{video: &youtube.Video{Formats: youtube.FormatList{{MimeType: "video/mp4"}}}}
	_, err := NewNativeStrategy(client).Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = NewNativeStrategy(&fakeVideoClient{err: errors.New("login required")}).Resolve(context.Background(), "x")
	assert.ErrorContains(t, err, "login required")
}
