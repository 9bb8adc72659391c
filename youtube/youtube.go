// Package youtube provides a YouTube Data API v3 client for discovering
// recently created channels and fetching their statistics.
package youtube

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// Sentinel errors for Data API operations.
var (
	ErrChannelNotFound  = errors.New("youtube: channel not found")
	ErrQuotaExhausted   = errors.New("youtube: api quota exhausted")
	ErrMissingAPIKey    = errors.New("youtube: api key required")
	ErrInvalidChannelID = errors.New("youtube: invalid channel id")
)

// Source defines the API surface the discovery pipeline consumes.
// Implementations must be safe for concurrent use.
type Source interface {
	// SearchRecentVideos fetches one page of videos published after the
	// given time, newest first. An empty pageToken requests the first page.
	SearchRecentVideos(ctx context.Context, publishedAfter time.Time, pageToken string) (*SearchPage, error)

	// FetchChannel fetches snippet and statistics for a channel ID.
	FetchChannel(ctx context.Context, channelID string) (*ChannelInfo, error)

	// QuotaUsed returns the estimated quota units consumed so far.
	QuotaUsed() int
}

// SearchItem is a single video hit from a search page. Only the channel ID is
// needed downstream; the rest is kept for logging.
type SearchItem struct {
	// VideoID is the YouTube video ID (e.g., "dQw4w9WgXcQ").
	VideoID string `json:"video_id"`

	// ChannelID is the uploading channel's ID (e.g., "UCuAXFkgsw1L7xaCfnd5JJOw").
	ChannelID string `json:"channel_id"`

	// Title is the video title.
	Title string `json:"title"`

	// PublishedAt is when the video was published. Zero if unparsable.
	PublishedAt time.Time `json:"published_at"`
}

// SearchPage is one page of paginated search results.
type SearchPage struct {
	// Items are the video hits on this page. May be empty.
	Items []SearchItem `json:"items"`

	// NextPageToken requests the following page. Empty when the feed
	// is exhausted.
	NextPageToken string `json:"next_page_token"`
}

// ChannelInfo contains a channel's snippet and statistics, populated from a
// single channels.list response.
type ChannelInfo struct {
	// ID is the YouTube channel ID.
	ID string `json:"channel_id"`

	// Title is the channel's display name.
	Title string `json:"title"`

	// Description is the channel description.
	Description string `json:"description"`

	// CreatedAt is when the channel was created.
	CreatedAt time.Time `json:"created_at"`

	// Subscribers is the subscriber count. Zero when HiddenSubscribers is set.
	Subscribers int64 `json:"subscribers"`

	// HiddenSubscribers is true when the channel hides its subscriber count.
	HiddenSubscribers bool `json:"hidden_subscribers,omitempty"`

	// Videos is the channel's public video count.
	Videos int64 `json:"videos"`

	// Views is the channel's total view count.
	Views int64 `json:"views"`

	// Country is the channel's declared country code. May be empty.
	Country string `json:"country,omitempty"`

	// FetchedAt is when the statistics were retrieved.
	FetchedAt time.Time `json:"fetched_at"`
}

// URL returns the full YouTube URL for this channel.
func (c ChannelInfo) URL() string {
	return ChannelURL(c.ID)
}

// ChannelURL returns the public URL for a channel ID.
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

// channelIDRegex matches canonical channel IDs: "UC" followed by 22
// base64url characters.
var channelIDRegex = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)

// ValidChannelID reports whether s is a canonical channel ID.
func ValidChannelID(s string) bool {
	return channelIDRegex.MatchString(s)
}

// APIError wraps Data API errors with the operation that failed.
// Use errors.As() to extract this error type and get operation details:
//
//	var apiErr *youtube.APIError
//	if errors.As(err, &apiErr) {
//		fmt.Printf("%s call failed: %v\n", apiErr.Op, apiErr.Err)
//	}
type APIError struct {
	// Op is the API operation that failed ("search", "channels").
	Op string
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the API error.
func (e *APIError) Error() string {
	return "youtube: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *APIError) Unwrap() error { return e.Err }
