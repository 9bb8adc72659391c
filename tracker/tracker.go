// Package tracker drives the channel discovery pipeline. A run walks the
// recent-video search feed page by page, resolves each uploading channel
// once, keeps the channels created within the configured age window, and
// hands them to an exporter.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ytgrowth/logger"
	"ytgrowth/youtube"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxConsecutiveFailures aborts a run whose channel lookups keep failing,
// so a broken credential or network does not burn the whole page budget.
const maxConsecutiveFailures = 5

// Exporter receives the channels a run discovers.
type Exporter interface {
	// Append buffers one channel row.
	Append(info *youtube.ChannelInfo) error
	// Save flushes buffered rows to their destination.
	Save() error
}

// Options configures a discovery run.
type Options struct {
	// RunID labels the run. Empty means generate one.
	RunID string
	// SearchWindow bounds how far back the video search looks.
	SearchWindow time.Duration
	// MaxChannelAge is the creation-age cutoff for a channel to count as new.
	MaxChannelAge time.Duration
	// MinChannels stops the run once this many matching channels are found.
	MinChannels int
	// MaxPages caps the number of search pages fetched.
	MaxPages int
	// EmptyPageRetries is how many times an empty page is refetched before
	// the feed is declared exhausted. Negative disables refetching.
	EmptyPageRetries int
	// EmptyPageDelay is the pause before refetching an empty page.
	EmptyPageDelay time.Duration
	// KnownChannelIDs seeds the dedupe set, typically with channels already
	// exported by an earlier run.
	KnownChannelIDs []string
}

// Tracker runs channel discovery against a video source and an exporter.
type Tracker struct {
	source youtube.Source
	export Exporter
	opts   Options
	log    *logrus.Entry
	seen   map[string]struct{}
	now    func() time.Time
}

// New creates a tracker. Zero option fields fall back to defaults; a
// negative EmptyPageRetries or EmptyPageDelay disables that behavior.
func New(source youtube.Source, export Exporter, opts Options, log *logrus.Entry) *Tracker {
	if log == nil {
		log = logger.Discard()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.SearchWindow <= 0 {
		opts.SearchWindow = 90 * 24 * time.Hour
	}
	if opts.MaxChannelAge <= 0 {
		opts.MaxChannelAge = 180 * 24 * time.Hour
	}
	if opts.MinChannels <= 0 {
		opts.MinChannels = 50
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 100
	}
	if opts.EmptyPageRetries == 0 {
		opts.EmptyPageRetries = 3
	} else if opts.EmptyPageRetries < 0 {
		opts.EmptyPageRetries = 0
	}
	if opts.EmptyPageDelay == 0 {
		opts.EmptyPageDelay = 5 * time.Second
	} else if opts.EmptyPageDelay < 0 {
		opts.EmptyPageDelay = 0
	}

	seen := make(map[string]struct{}, len(opts.KnownChannelIDs))
	for _, id := range opts.KnownChannelIDs {
		seen[id] = struct{}{}
	}

	return &Tracker{
		source: source,
		export: export,
		opts:   opts,
		log:    log,
		seen:   seen,
		now:    time.Now,
	}
}

// Run executes one discovery run. It is sequential and single-threaded:
// one search page at a time, one channel lookup at a time. Collected rows
// are saved on every exit path, so a canceled or failed run still keeps
// what it found. The returned Result is always non-nil.
func (t *Tracker) Run(ctx context.Context) (*Result, error) {
	start := t.now()
	res := &Result{RunID: t.opts.RunID}

	publishedAfter := start.Add(-t.opts.SearchWindow)
	createdAfter := start.Add(-t.opts.MaxChannelAge)

	t.log.WithFields(logrus.Fields{
		"published_after": publishedAfter.UTC().Format(time.RFC3339),
		"created_after":   createdAfter.UTC().Format(time.RFC3339),
		"target":          t.opts.MinChannels,
		"max_pages":       t.opts.MaxPages,
		"known_channels":  len(t.seen),
	}).Info("tracker: starting channel discovery")

	err := t.discover(ctx, res, publishedAfter, createdAfter)

	res.QuotaUsed = t.source.QuotaUsed()
	res.Elapsed = t.now().Sub(start)

	if saveErr := t.export.Save(); saveErr != nil {
		t.log.WithError(saveErr).Error("tracker: saving results failed")
		if err == nil {
			err = fmt.Errorf("save results: %w", saveErr)
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Stopped = StopCanceled
		} else {
			res.Stopped = StopAborted
		}
		return res, err
	}

	t.log.WithFields(logrus.Fields{
		"found":    res.ChannelsFound,
		"examined": res.ChannelsExamined,
		"skipped":  res.ChannelsSkipped,
		"pages":    res.PagesProcessed,
		"quota":    res.QuotaUsed,
		"stopped":  res.Stopped.String(),
		"elapsed":  res.Elapsed.Round(time.Millisecond).String(),
	}).Info("tracker: discovery finished")
	return res, nil
}

// discover walks the search feed until the target is reached or a stop
// condition ends the run. It fills in res.Stopped on every nil return.
func (t *Tracker) discover(ctx context.Context, res *Result, publishedAfter, createdAfter time.Time) error {
	pageToken := ""
	emptyRetries := 0
	failureStreak := 0

	for res.ChannelsFound < t.opts.MinChannels && res.PagesProcessed < t.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := t.source.SearchRecentVideos(ctx, publishedAfter, pageToken)
		if err != nil {
			if errors.Is(err, youtube.ErrQuotaExhausted) {
				t.log.Warn("tracker: api quota exhausted, stopping with partial results")
				res.Stopped = StopQuotaExhausted
				return nil
			}
			return fmt.Errorf("search videos: %w", err)
		}
		res.PagesProcessed++

		if len(page.Items) == 0 {
			if emptyRetries >= t.opts.EmptyPageRetries {
				t.log.Info("tracker: no more videos in the search window")
				res.Stopped = StopFeedExhausted
				return nil
			}
			emptyRetries++
			t.log.Warnf("tracker: empty search page, refetch %d/%d in %s",
				emptyRetries, t.opts.EmptyPageRetries, t.opts.EmptyPageDelay)
			if err := sleepContext(ctx, t.opts.EmptyPageDelay); err != nil {
				return err
			}
			// Refetch with the same page token.
			continue
		}
		emptyRetries = 0

		t.log.Debugf("tracker: page %d: %d videos", res.PagesProcessed, len(page.Items))

		for _, item := range page.Items {
			if res.ChannelsFound >= t.opts.MinChannels {
				break
			}
			if _, ok := t.seen[item.ChannelID]; ok {
				continue
			}
			t.seen[item.ChannelID] = struct{}{}
			res.ChannelsExamined++

			info, err := t.source.FetchChannel(ctx, item.ChannelID)
			if err != nil {
				if errors.Is(err, youtube.ErrQuotaExhausted) {
					t.log.Warn("tracker: api quota exhausted, stopping with partial results")
					res.Stopped = StopQuotaExhausted
					return nil
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				res.ChannelsSkipped++
				if errors.Is(err, youtube.ErrChannelNotFound) {
					t.log.Debugf("tracker: channel %s not available, skipping", item.ChannelID)
					continue
				}
				failureStreak++
				t.log.WithError(err).Warnf("tracker: fetching channel %s failed, skipping", item.ChannelID)
				if failureStreak >= maxConsecutiveFailures {
					return fmt.Errorf("aborting after %d consecutive channel failures: %w", failureStreak, err)
				}
				continue
			}
			failureStreak = 0

			if info.HiddenSubscribers {
				res.ChannelsSkipped++
				t.log.Debugf("tracker: channel %s hides its subscriber count, skipping", info.ID)
				continue
			}
			if info.CreatedAt.Before(createdAfter) {
				t.log.Debugf("tracker: channel %s created %s, too old",
					info.ID, info.CreatedAt.Format("2006-01-02"))
				continue
			}

			if err := t.export.Append(info); err != nil {
				return fmt.Errorf("append channel %s: %w", info.ID, err)
			}
			res.ChannelsFound++
			t.log.Infof("tracker: found new channel %q (%d subscribers, created %s) [%d/%d]",
				info.Title, info.Subscribers, info.CreatedAt.Format("2006-01-02"),
				res.ChannelsFound, t.opts.MinChannels)
		}

		if res.ChannelsFound >= t.opts.MinChannels {
			res.Stopped = StopTargetReached
			return nil
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			t.log.Info("tracker: search feed exhausted")
			res.Stopped = StopFeedExhausted
			return nil
		}
	}

	if res.ChannelsFound >= t.opts.MinChannels {
		res.Stopped = StopTargetReached
		return nil
	}
	res.Stopped = StopPagesExhausted
	t.log.Warnf("tracker: page limit reached with %d/%d channels", res.ChannelsFound, t.opts.MinChannels)
	return nil
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
