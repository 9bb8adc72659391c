package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ytgrowth/logger"
	"ytgrowth/retry"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Data API quota costs in units.
const (
	quotaCostSearch   = 100
	quotaCostChannels = 1
)

// Options configures a Client.
type Options struct {
	// APIKey is the Data API key. Required.
	APIKey string
	// Region is the regionCode for searches (default "US").
	Region string
	// PageSize is the maxResults per search page (default 50).
	PageSize int64
	// RequestsPerSecond paces outgoing calls (default 2.0).
	RequestsPerSecond float64
	// QuotaBudget is the estimated daily quota in units (default 10000).
	QuotaBudget int
	// QuotaReserve is the floor of units to keep unspent (default 0).
	QuotaReserve int
	// Retry overrides the default retry configuration.
	Retry *retry.Config
	// Logger receives client logs. Nil discards them.
	Logger *logrus.Entry
	// ClientOptions are extra service options, used by tests to point the
	// client at a fake API endpoint.
	ClientOptions []option.ClientOption
}

// Client implements Source using YouTube Data API v3. It paces calls,
// retries transient failures, and tracks estimated quota usage so a run can
// stop cleanly before the daily budget is gone.
type Client struct {
	service  *youtube.Service
	region   string
	pageSize int64
	limiter  *rate.Limiter
	retryCfg retry.Config
	log      *logrus.Entry

	// Quota tracking
	mu             sync.Mutex
	estimatedQuota int
	quotaBudget    int
	quotaReserve   int
	lastQuotaReset time.Time
	quotaExhausted bool
}

// NewClient creates a Data API v3 client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(opts.APIKey)}, opts.ClientOptions...)
	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	if opts.Region == "" {
		opts.Region = "US"
	}
	if opts.PageSize <= 0 || opts.PageSize > 50 {
		opts.PageSize = 50
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2.0
	}
	if opts.QuotaBudget <= 0 {
		opts.QuotaBudget = 10000
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	cfg := retry.DefaultConfig()
	if opts.Retry != nil {
		cfg = *opts.Retry
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, sleep time.Duration) {
			log.WithError(err).Warnf("youtube: transient api error, retry %d in %s", attempt, sleep.Round(time.Millisecond))
		}
	}

	return &Client{
		service:        service,
		region:         opts.Region,
		pageSize:       opts.PageSize,
		limiter:        rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		retryCfg:       cfg,
		log:            log,
		estimatedQuota: opts.QuotaBudget,
		quotaBudget:    opts.QuotaBudget,
		quotaReserve:   opts.QuotaReserve,
		lastQuotaReset: time.Now(),
	}, nil
}

// SearchRecentVideos fetches one page of videos published after the given
// time, newest first. The search has no query term; the date window and
// region bound the result set.
func (c *Client) SearchRecentVideos(ctx context.Context, publishedAfter time.Time, pageToken string) (*SearchPage, error) {
	if err := c.checkQuota(); err != nil {
		return nil, &APIError{Op: "search", Err: err}
	}

	var page *SearchPage
	err := retry.Do(ctx, c.retryCfg, apiErrorClassifier, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		call := c.service.Search.List([]string{"snippet"}).
			Type("video").
			Order("date").
			RegionCode(c.region).
			PublishedAfter(publishedAfter.UTC().Format(time.RFC3339)).
			MaxResults(c.pageSize).
			PageToken(pageToken).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.trackQuotaUsage(quotaCostSearch)

		p := &SearchPage{NextPageToken: resp.NextPageToken}
		for _, item := range resp.Items {
			if item.Id == nil || item.Snippet == nil || item.Snippet.ChannelId == "" {
				continue
			}
			hit := SearchItem{
				VideoID:   item.Id.VideoId,
				ChannelID: item.Snippet.ChannelId,
				Title:     item.Snippet.Title,
			}
			if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
				hit.PublishedAt = t
			}
			p.Items = append(p.Items, hit)
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, &APIError{Op: "search", Err: c.normalizeQuotaError(err)}
	}

	return page, nil
}

// FetchChannel fetches snippet and statistics for a channel ID.
// A channel unknown to the API returns ErrChannelNotFound.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	if !ValidChannelID(channelID) {
		return nil, &APIError{Op: "channels", Err: fmt.Errorf("%w: %q", ErrInvalidChannelID, channelID)}
	}
	if err := c.checkQuota(); err != nil {
		return nil, &APIError{Op: "channels", Err: err}
	}

	var raw *youtube.Channel
	err := retry.Do(ctx, c.retryCfg, apiErrorClassifier, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		call := c.service.Channels.List([]string{"snippet", "statistics"}).
			Id(channelID).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.trackQuotaUsage(quotaCostChannels)

		if len(resp.Items) == 0 {
			return ErrChannelNotFound
		}
		raw = resp.Items[0]
		return nil
	})
	if err != nil {
		return nil, &APIError{Op: "channels", Err: c.normalizeQuotaError(err)}
	}

	info, err := parseChannel(raw)
	if err != nil {
		return nil, &APIError{Op: "channels", Err: err}
	}
	return info, nil
}

// parseChannel converts an API channel resource into a ChannelInfo.
func parseChannel(ch *youtube.Channel) (*ChannelInfo, error) {
	if ch.Snippet == nil || ch.Statistics == nil {
		return nil, fmt.Errorf("%w: channel %s response missing snippet or statistics", ErrChannelNotFound, ch.Id)
	}

	created, err := time.Parse(time.RFC3339, ch.Snippet.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse channel %s creation time: %w", ch.Id, err)
	}

	info := &ChannelInfo{
		ID:                ch.Id,
		Title:             ch.Snippet.Title,
		Description:       ch.Snippet.Description,
		Country:           ch.Snippet.Country,
		CreatedAt:         created,
		HiddenSubscribers: ch.Statistics.HiddenSubscriberCount,
		Videos:            int64(ch.Statistics.VideoCount),
		Views:             int64(ch.Statistics.ViewCount),
		FetchedAt:         time.Now().UTC(),
	}
	if !info.HiddenSubscribers {
		info.Subscribers = int64(ch.Statistics.SubscriberCount)
	}
	return info, nil
}

// QuotaUsed returns the estimated quota units consumed so far.
func (c *Client) QuotaUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quotaBudget - c.estimatedQuota
}

// EstimatedQuota returns the estimated remaining quota units.
func (c *Client) EstimatedQuota() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimatedQuota
}

// checkQuota fails fast once the estimated quota has dropped below the
// reserve. The estimate resets after 24 hours.
func (c *Client) checkQuota() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastQuotaReset) > 24*time.Hour {
		c.estimatedQuota = c.quotaBudget
		c.lastQuotaReset = time.Now()
		c.quotaExhausted = false
		c.log.Info("youtube: quota reset (new day)")
	}

	if c.quotaExhausted {
		return ErrQuotaExhausted
	}
	return nil
}

// trackQuotaUsage updates the estimated quota after a successful call.
func (c *Client) trackQuotaUsage(units int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.estimatedQuota -= units

	if c.estimatedQuota < c.quotaReserve {
		if !c.quotaExhausted {
			c.log.Warnf("youtube: quota exhausted (remaining: %d, reserve: %d)", c.estimatedQuota, c.quotaReserve)
			c.quotaExhausted = true
		}
	} else {
		c.log.Debugf("youtube: quota usage - remaining: %d units", c.estimatedQuota)
	}
}

// normalizeQuotaError maps a server-reported quota failure to
// ErrQuotaExhausted and marks the client exhausted so later calls fail fast.
func (c *Client) normalizeQuotaError(err error) error {
	if !isQuotaExceeded(err) {
		return err
	}

	c.mu.Lock()
	if !c.quotaExhausted {
		c.quotaExhausted = true
		c.log.Warn("youtube: daily quota exhausted (reported by api)")
	}
	c.mu.Unlock()

	return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
}

// isQuotaExceeded reports whether err is a daily-quota failure, which no
// amount of retrying within one run will fix.
func isQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 403 {
		for _, item := range gerr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "dailyLimitExceeded" {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), "quotaExceeded") || strings.Contains(err.Error(), "dailyLimitExceeded")
}

// apiErrorClassifier determines if an API error is retryable.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	// Don't retry sentinel or cancellation errors
	if errors.Is(err, ErrChannelNotFound) || errors.Is(err, ErrQuotaExhausted) || errors.Is(err, ErrInvalidChannelID) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 429 || gerr.Code >= 500:
			return true
		case gerr.Code == 403:
			// Per-minute rate limits recover; daily quota does not.
			for _, item := range gerr.Errors {
				switch item.Reason {
				case "rateLimitExceeded", "userRateLimitExceeded":
					return true
				case "quotaExceeded", "dailyLimitExceeded":
					return false
				}
			}
			return false
		default:
			return false
		}
	}

	// Fall back to message matching for errors that lost their type.
	if strings.Contains(err.Error(), "rateLimitExceeded") {
		return true
	}
	if strings.Contains(err.Error(), "quotaExceeded") {
		return false
	}

	// Default to retryable for unknown (likely network) errors
	return true
}
