// Package youtube reads public video statistics from the YouTube Data API
// and turns them into challenge metrics.
//
// Every lookup goes through a client-side token bucket, a retrier and a
// circuit breaker, in that order. Quota errors are not retried: they will not
// clear until the daily quota resets.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/domain/shared"
	"github.com/createathon/challenge-hub/pkg/circuitbreaker"
	"github.com/createathon/challenge-hub/pkg/retry"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

type ClientConfig struct {
	APIKey string
	// Endpoint overrides the API base URL, mostly for tests.
	Endpoint string
	Timeout  time.Duration
	// RequestsPerSecond and Burst shape the client-side limiter.
	RequestsPerSecond float64
	Burst             int
	Retrier           *retry.Retrier
	Breaker           *circuitbreaker.CircuitBreaker
	Logger            *slog.Logger
}

func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:            apiKey,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements the engine's MetricsSource.
type Client struct {
	service *yt.Service
	limiter *rate.Limiter
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds the Data API service. It does not call the API.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube: API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "youtube_client")

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	retrier := cfg.Retrier
	if retrier == nil {
		retrier = retry.YouTubeRetrier()
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuitbreaker.YouTubeBreaker(
			func(name string, from, to circuitbreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
			circuitbreaker.WithIsFailure(IsOutage),
		)
	}

	return &Client{
		service: service,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retrier: retrier,
		breaker: breaker,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// FetchMetrics resolves contentRef to a video id and returns its public
// view, like and comment counts. Hidden counters read as zero.
func (c *Client) FetchMetrics(ctx context.Context, contentRef string) (challenge.Metrics, error) {
	videoID, err := ParseVideoID(contentRef)
	if err != nil {
		return challenge.Metrics{}, err
	}

	stats, err := circuitbreaker.ExecuteValue(ctx, c.breaker, func(ctx context.Context) (*yt.VideoStatistics, error) {
		return retry.DoValue(ctx, c.retrier, func(ctx context.Context) (*yt.VideoStatistics, error) {
			return c.fetchStatistics(ctx, videoID)
		})
	})
	if circuitbreaker.IsRejection(err) {
		return challenge.Metrics{}, fmt.Errorf("%w: %w", shared.ErrYouTubeUnavailable, err)
	}
	if err != nil {
		return challenge.Metrics{}, err
	}

	m := challenge.Metrics{
		Views:    clampInt64(stats.ViewCount),
		Likes:    clampInt64(stats.LikeCount),
		Comments: clampInt64(stats.CommentCount),
	}
	c.logger.Debug("fetched video statistics", "video_id", videoID, "views", m.Views)
	return m, nil
}

// Available reports whether the breaker currently lets calls through.
func (c *Client) Available() bool {
	return c.breaker.State() != circuitbreaker.StateOpen
}

func (c *Client) fetchStatistics(ctx context.Context, videoID string) (*yt.VideoStatistics, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.service.Videos.List([]string{"statistics"}).Id(videoID).Context(callCtx).Do()
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Items) == 0 {
		return nil, retry.Permanent(fmt.Errorf("video %s: %w", videoID, shared.ErrYouTubeVideoNotFound))
	}
	if resp.Items[0].Statistics == nil {
		return &yt.VideoStatistics{}, nil
	}
	return resp.Items[0].Statistics, nil
}

// classify maps API errors onto domain errors and retry markers.
func classify(err error) error {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		if errors.Is(err, context.Canceled) {
			return retry.Permanent(err)
		}
		return retry.Retryable(fmt.Errorf("%w: %v", shared.ErrYouTubeUnavailable, err))
	}

	switch {
	case gErr.Code == http.StatusTooManyRequests || isQuotaError(gErr):
		return retry.Permanent(fmt.Errorf("%w: %v", shared.ErrYouTubeRateLimited, gErr))
	case gErr.Code == http.StatusNotFound:
		return retry.Permanent(fmt.Errorf("%w: %v", shared.ErrYouTubeVideoNotFound, gErr))
	case gErr.Code >= 500:
		return retry.Retryable(fmt.Errorf("%w: %v", shared.ErrYouTubeUnavailable, gErr))
	default:
		return retry.Permanent(fmt.Errorf("%w: %v", shared.ErrYouTubeInvalidResponse, gErr))
	}
}

// IsOutage decides what the breaker counts: unknown videos and bad links
// say nothing about the API's health.
func IsOutage(err error) bool {
	return errors.Is(err, shared.ErrYouTubeUnavailable) || errors.Is(err, shared.ErrYouTubeRateLimited)
}

func isQuotaError(e *googleapi.Error) bool {
	if e.Code != http.StatusForbidden {
		return false
	}
	for _, item := range e.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
			return true
		}
	}
	return false
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
