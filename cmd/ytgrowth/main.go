package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ytgrowth"
	"ytgrowth/config"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	flagConfig        string
	flagAPIKey        string
	flagOutput        string
	flagRegion        string
	flagMinChannels   int
	flagMaxPages      int
	flagSearchWindow  time.Duration
	flagMaxChannelAge time.Duration
	flagLogLevel      string
	flagQuotaBudget   int
)

var rootCmd = &cobra.Command{
	Use:   "ytgrowth",
	Short: "Discover newly created YouTube channels",
	Long: `ytgrowth searches YouTube for recently published videos, picks out the
channels created within the configured age window, and exports them to an
Excel workbook with subscriber counts and links.

Configuration is read from ytgrowth.json (or ~/.config/ytgrowth/ytgrowth.json),
overridden by YTGROWTH_* environment variables, then by flags.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return discoverRun(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ytgrowth version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ytgrowth %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a JSON config file")
	rootCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "YouTube Data API v3 key")
	rootCmd.Flags().StringVar(&flagOutput, "out", "", "Output workbook path")
	rootCmd.Flags().StringVar(&flagRegion, "region", "", "Region code for the video search")
	rootCmd.Flags().IntVar(&flagMinChannels, "min-channels", 0, "Stop after this many new channels")
	rootCmd.Flags().IntVar(&flagMaxPages, "max-pages", 0, "Search page cap per run")
	rootCmd.Flags().DurationVar(&flagSearchWindow, "search-window", 0, "How far back the video search looks")
	rootCmd.Flags().DurationVar(&flagMaxChannelAge, "max-channel-age", 0, "Creation-age cutoff for a channel to count as new")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log verbosity: debug, info, warn, error")
	rootCmd.Flags().IntVar(&flagQuotaBudget, "quota-budget", 0, "Daily API quota budget in units")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func discoverRun(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := ytgrowth.Run(ctx, cfg)
	if err != nil {
		if res != nil && res.ChannelsFound > 0 {
			fmt.Fprintf(os.Stderr, "Run ended early after finding %d channels: %v\n", res.ChannelsFound, err)
		}
		return err
	}

	fmt.Printf("Found %d new channels in %s (%d pages, %d quota units, %s)\n",
		res.ChannelsFound, cfg.OutputPath, res.PagesProcessed, res.QuotaUsed, res.Stopped)
	return nil
}

// applyFlags overrides loaded configuration with flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("out") {
		cfg.OutputPath = flagOutput
	}
	if flags.Changed("region") {
		cfg.Region = flagRegion
	}
	if flags.Changed("min-channels") {
		cfg.MinChannels = flagMinChannels
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages = flagMaxPages
	}
	if flags.Changed("search-window") {
		cfg.SearchWindow = flagSearchWindow
	}
	if flags.Changed("max-channel-age") {
		cfg.MaxChannelAge = flagMaxChannelAge
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("quota-budget") {
		cfg.QuotaBudget = flagQuotaBudget
	}
}
