// Package stream resolves a video ID to a proxied, playable audio URL by
// running an ordered chain of strategies.
package stream

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/singleflight"

	"ytaudio-proxy/pkg/apperr"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/metrics"
	"ytaudio-proxy/pkg/registry"
	"ytaudio-proxy/pkg/types"
	"ytaudio-proxy/pkg/urlutil"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DefaultResolveTimeout bounds one shared resolution. It is detached from
// any single caller, so it needs its own deadline.
const DefaultResolveTimeout = 90 * time.Second

// ValidVideoID reports whether id is safe to hand to the strategies.
func ValidVideoID(id string) bool {
	return videoIDRe.MatchString(id)
}

// Resolver runs the registered strategies in order until one yields audio.
type Resolver struct {
	strategies *registry.StrategyRegistry
	group      singleflight.Group
	timeout    time.Duration
	metrics    *metrics.Metrics
	log        *logging.Logger
}

// NewResolver creates a resolver over the given strategy registry.
func NewResolver(strategies *registry.StrategyRegistry, m *metrics.Metrics, log *logging.Logger) *Resolver {
	return &Resolver{
		strategies: strategies,
		timeout:    DefaultResolveTimeout,
		metrics:    m,
		log:        log.WithComponent("stream"),
	}
}

// Strategies returns the strategy names in the order they are tried.
func (r *Resolver) Strategies() []string {
	return r.strategies.Names()
}

// GetStream resolves videoID. origin is this server's scheme://host as seen
// by the client and prefixes the returned proxy URL.
//
// The error is non-nil only for invalid input; strategy failures are
// reported through a descriptor with Success false.
func (r *Resolver) GetStream(ctx context.Context, videoID, origin string) (types.StreamDescriptor, error) {
	if !ValidVideoID(videoID) {
		return types.StreamDescriptor{}, apperr.New(apperr.KindInput, "stream.GetStream", "invalid video id")
	}

	if err := ctx.Err(); err != nil {
		return types.StreamDescriptor{Success: false, Error: err.Error()}, nil
	}

	// Concurrent requests for one video share a resolution. Raw URLs are
	// origin independent, so each caller wraps it with its own origin.
	// The shared work outlives any one caller; a caller that goes away
	// only stops waiting.
	ch := r.group.DoChan(videoID, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.resolve(sharedCtx, videoID)
	})

	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		return types.StreamDescriptor{Success: false, Error: ctx.Err().Error()}, nil
	}
	if out.Err != nil {
		return types.StreamDescriptor{Success: false, Error: out.Err.Error()}, nil
	}

	res := out.Val.(*strategyResult)
	return types.StreamDescriptor{
		Success:   true,
		AudioURL:  urlutil.ProxyURL(origin, res.AudioURL),
		Title:     res.Title,
		Duration:  res.Duration,
		Thumbnail: res.Thumbnail,
		Channel:   res.Channel,
		Strategy:  res.strategy,
	}, nil
}

type strategyResult struct {
	types.Resolution
	strategy string
}

func (r *Resolver) resolve(ctx context.Context, videoID string) (*strategyResult, error) {
	log := r.log.WithVideoID(videoID)

	lastErr := errors.New("no strategies configured")
	for _, s := range r.strategies.All() {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		stratLog := log.WithStrategy(s.Name())
		start := time.Now()
		res, err := s.Resolve(ctx, videoID)
		if err == nil && (res == nil || res.AudioURL == "") {
			err = ErrNoAudio
		}
		if err != nil {
			lastErr = err
			stratLog.Warn("strategy failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
			r.metrics.ObserveStrategy(s.Name(), outcomeOf(err))
			continue
		}

		stratLog.Info("stream resolved", "duration_ms", time.Since(start).Milliseconds())
		r.metrics.ObserveStrategy(s.Name(), metrics.OutcomeOK)
		return &strategyResult{Resolution: *res, strategy: s.Name()}, nil
	}

	return nil, fmt.Errorf("all strategies failed: %s", apperr.Message(lastErr))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrBotBlocked):
		return metrics.OutcomeBot
	case errors.Is(err, ErrNoAudio):
		return metrics.OutcomeEmpty
	default:
		return metrics.OutcomeError
	}
}
