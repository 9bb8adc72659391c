package ytgrowth

import (
	"context"
	"fmt"

	"ytgrowth/config"
	"ytgrowth/excel"
	"ytgrowth/logger"
	"ytgrowth/retry"
	"ytgrowth/tracker"
	"ytgrowth/youtube"

	"github.com/google/uuid"
)

// Run executes one channel discovery run with the given configuration.
// A nil cfg loads configuration from the environment and config files.
// Results found before an error are still saved to the output workbook.
func Run(ctx context.Context, cfg *config.Config) (*tracker.Result, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	log := logger.Init(cfg.LogLevel).WithField("run_id", runID[:8])

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.MaxRetries
	retryCfg.InitialBackoff = cfg.InitialBackoff
	retryCfg.MaxBackoff = cfg.MaxBackoff
	retryCfg.Multiplier = cfg.BackoffMultiplier

	client, err := youtube.NewClient(ctx, youtube.Options{
		APIKey:            cfg.APIKey,
		Region:            cfg.Region,
		PageSize:          cfg.PageSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		QuotaBudget:       cfg.QuotaBudget,
		QuotaReserve:      cfg.QuotaReserve,
		Retry:             &retryCfg,
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("create youtube client: %w", err)
	}

	wb, err := excel.Open(cfg.OutputPath, log)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", cfg.OutputPath, err)
	}
	defer wb.Close()

	// In the config a zero means none, while the tracker reads zero as
	// unset and negative as none.
	emptyRetries := cfg.EmptyPageRetries
	if emptyRetries == 0 {
		emptyRetries = -1
	}
	emptyDelay := cfg.EmptyPageDelay
	if emptyDelay == 0 {
		emptyDelay = -1
	}

	tr := tracker.New(client, wb, tracker.Options{
		RunID:            runID,
		SearchWindow:     cfg.SearchWindow,
		MaxChannelAge:    cfg.MaxChannelAge,
		MinChannels:      cfg.MinChannels,
		MaxPages:         cfg.MaxPages,
		EmptyPageRetries: emptyRetries,
		EmptyPageDelay:   emptyDelay,
		KnownChannelIDs:  wb.ChannelIDs(),
	}, log)

	return tr.Run(ctx)
}
