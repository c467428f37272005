// Package extraction wraps the yt-dlp engine with header rotation, retries,
// bot-wall detection and rate limiting.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ytaudio-proxy/pkg/apperr"
	"ytaudio-proxy/pkg/config"
	"ytaudio-proxy/pkg/logging"
	"ytaudio-proxy/pkg/metrics"
	"ytaudio-proxy/pkg/types"
)

// ErrNoDocument is returned when the engine ran but produced nothing usable.
var ErrNoDocument = errors.New("extractor returned no document")

// Random is the subset of *rand.Rand the adapter draws from.
type Random interface {
	IntN(n int) int
	Int64N(n int64) int64
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Adapter resolves references through a Runner.
type Adapter struct {
	runner     Runner
	pool       *HeaderPool
	attempts   int
	backoffMin time.Duration
	backoffMax time.Duration
	limiter    *rate.Limiter
	rng        Random
	sleep      Sleeper
	metrics    *metrics.Metrics
	log        *logging.Logger
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithRandom replaces the random source used for header and backoff choice.
func WithRandom(r Random) Option {
	return func(a *Adapter) { a.rng = r }
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s Sleeper) Option {
	return func(a *Adapter) { a.sleep = s }
}

// WithLimiter replaces the invocation rate limiter. nil disables limiting.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Adapter) { a.limiter = l }
}

// WithMetrics records every engine invocation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// NewAdapter creates an adapter using the retry, header and rate settings in cfg.
func NewAdapter(cfg *config.Config, runner Runner, log *logging.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		runner:     runner,
		pool:       NewHeaderPool(cfg.UserAgents),
		attempts:   max(cfg.ExtractAttempts, 1),
		backoffMin: cfg.ExtractBackoffMin,
		backoffMax: max(cfg.ExtractBackoffMax, cfg.ExtractBackoffMin),
		rng:        globalRandom{},
		sleep:      sleepContext,
		log:        log.WithComponent("extraction"),
	}
	if cfg.ExtractRate > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.ExtractRate), max(cfg.ExtractBurst, 1))
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve extracts metadata for reference, retrying per opts.
//
// Failures are *apperr.Error values: KindBotBlocked when the final attempt
// was refused as automated traffic, KindExtraction otherwise.
func (a *Adapter) Resolve(ctx context.Context, reference string, opts Options) (*types.ExtractedInfo, error) {
	const op = "extraction.Resolve"

	attempts := a.attempts
	if opts.NoRetry {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := a.sleep(ctx, a.backoff()); err != nil {
				return nil, apperr.Wrap(apperr.KindExtraction, op, err)
			}
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil, apperr.Wrap(apperr.KindExtraction, op, err)
			}
		}

		headers := a.pool.Pick(a.rng.IntN)
		start := time.Now()
		info, err := a.runOnce(ctx, reference, opts, headers)
		elapsed := time.Since(start)

		if err == nil {
			a.metrics.ObserveExtraction(metrics.OutcomeOK, elapsed)
			a.log.Debug("extraction succeeded", "reference", reference, "attempt", attempt, "duration_ms", elapsed.Milliseconds())
			return info, nil
		}

		lastErr = err
		outcome := metrics.OutcomeError
		if IsBotWall(err) {
			outcome = metrics.OutcomeBot
		}
		a.metrics.ObserveExtraction(outcome, elapsed)
		a.log.Warn("extraction attempt failed",
			"reference", reference,
			"attempt", attempt,
			"of", attempts,
			"bot_wall", outcome == metrics.OutcomeBot,
			"error", err)

		if ctx.Err() != nil {
			break
		}
	}

	if IsBotWall(lastErr) {
		return nil, apperr.Wrap(apperr.KindBotBlocked, op, lastErr)
	}
	return nil, apperr.Wrap(apperr.KindExtraction, op, lastErr)
}

func (a *Adapter) runOnce(ctx context.Context, reference string, opts Options, headers HeaderProfile) (*types.ExtractedInfo, error) {
	raw, err := a.runner.Run(ctx, reference, opts, headers)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// backoff draws a delay uniformly from [backoffMin, backoffMax].
func (a *Adapter) backoff() time.Duration {
	span := a.backoffMax - a.backoffMin
	if span <= 0 {
		return a.backoffMin
	}
	return a.backoffMin + time.Duration(a.rng.Int64N(int64(span)+1))
}

// Decode parses an engine JSON document.
func Decode(raw []byte) (*types.ExtractedInfo, error) {
	if !hasDocument(string(raw)) {
		return nil, ErrNoDocument
	}
	var info types.ExtractedInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode extractor output: %w", err)
	}
	return &info, nil
}

// IsBotWall reports whether err reads like the upstream refusing automated traffic.
func IsBotWall(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bot") || strings.Contains(msg, "sign in")
}

// PickAudioURL chooses the media URL to hand out for info: the top-level URL
// when the engine already selected a format, else the first audio-only
// format, else the last format listed. Empty when nothing is available.
func PickAudioURL(info *types.ExtractedInfo) string {
	if info == nil {
		return ""
	}
	if info.URL != "" {
		return info.URL
	}
	var last string
	for _, f := range info.Formats {
		if f == nil {
			continue
		}
		if f.IsAudioOnly() && f.URL != "" {
			return f.URL
		}
		last = f.URL
	}
	return last
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }
func (globalRandom) Int64N(n int64) int64 { return rand.Int64N(n) }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
