// Package ytgrowth discovers newly created YouTube channels.
//
// It searches the YouTube Data API for recently published videos, resolves
// each uploading channel, keeps the channels created within a configurable
// age window, and exports them to an Excel workbook with their subscriber
// counts and links.
//
// Overview
//
// The package surface is a single call:
//
//   - Run: Execute a full discovery run and export the results
//
// Quick Start
//
// Run a discovery with defaults (API key from YTGROWTH_API_KEY):
//
//	ctx := context.Background()
//	res, err := ytgrowth.Run(ctx, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Found %d new channels (%s)\n", res.ChannelsFound, res.Stopped)
//
// Run with explicit configuration:
//
//	cfg := config.DefaultConfig()
//	cfg.APIKey = "..."
//	cfg.MinChannels = 25
//	cfg.OutputPath = "channels.xlsx"
//	res, err := ytgrowth.Run(ctx, cfg)
//
// Configuration
//
// Settings merge from three layers, strongest first:
//
//   1. YTGROWTH_* environment variables
//   2. A JSON config file (ytgrowth.json or ~/.config/ytgrowth/ytgrowth.json)
//   3. Built-in defaults
//
// Environment variables:
//
//   - YTGROWTH_API_KEY: YouTube Data API v3 key
//   - YTGROWTH_REGION: Region code for the video search
//   - YTGROWTH_SEARCH_WINDOW: How far back the video search looks
//   - YTGROWTH_MAX_CHANNEL_AGE: Creation-age cutoff for a channel to count as new
//   - YTGROWTH_MIN_CHANNELS: Target number of channels per run
//   - YTGROWTH_MAX_PAGES: Search page cap per run
//   - YTGROWTH_OUTPUT: Output workbook path
//   - YTGROWTH_LOG_LEVEL: Log verbosity (debug, info, warn, error)
//   - YTGROWTH_MAX_RETRIES: Retry attempts per API call
//   - YTGROWTH_INITIAL_BACKOFF: Delay after the first failed call
//   - YTGROWTH_MAX_BACKOFF: Ceiling on the retry delay
//   - YTGROWTH_QUOTA_BUDGET: Daily API quota budget, in units
//
// Error Handling
//
// Failures come back wrapped, so errors.Is and errors.As see through every
// layer.
//
// Sentinel checks:
//
//	if errors.Is(err, ytgrowth.ErrQuotaExhausted) {
//		fmt.Println("Out of API quota for today")
//	}
//
// Typed detail:
//
//	var apiErr *ytgrowth.APIError
//	if errors.As(err, &apiErr) {
//		fmt.Printf("API call %s failed: %v\n", apiErr.Op, apiErr.Err)
//	}
//
// Advanced Usage
//
// When Run is too coarse, the sub-packages compose on their own:
//
//   - youtube: Data API search and channel lookup
//   - tracker: The discovery pipeline
//   - excel: Workbook export
//   - config: Layered run configuration
//   - retry: Bounded exponential backoff
//
// Example using the youtube and tracker packages directly:
//
//	client, err := youtube.NewClient(ctx, youtube.Options{APIKey: key})
//	if err != nil {
//		log.Fatal(err)
//	}
//	wb, err := excel.Open("channels.xlsx", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := tracker.New(client, wb, tracker.Options{MinChannels: 10}, nil).Run(ctx)
//
// API Access
//
// ytgrowth requires a YouTube Data API v3 key with the default quota of
// 10,000 units per day. A discovery run spends roughly 100 units per search
// page plus 1 unit per channel lookup.
//
// Create a key: https://console.cloud.google.com/apis/credentials
//
package ytgrowth
