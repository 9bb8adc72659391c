package tracker

import "time"

// StopReason explains why a discovery run ended.
type StopReason int

const (
	// StopTargetReached means the MinChannels target was hit.
	StopTargetReached StopReason = iota
	// StopPagesExhausted means the MaxPages cap was hit first.
	StopPagesExhausted
	// StopFeedExhausted means the search feed ran out of results.
	StopFeedExhausted
	// StopQuotaExhausted means the API quota budget ran out.
	StopQuotaExhausted
	// StopCanceled means the context was canceled.
	StopCanceled
	// StopAborted means an unrecoverable error ended the run.
	StopAborted
)

// String returns a human-readable stop reason.
func (r StopReason) String() string {
	switch r {
	case StopTargetReached:
		return "target reached"
	case StopPagesExhausted:
		return "page limit reached"
	case StopFeedExhausted:
		return "feed exhausted"
	case StopQuotaExhausted:
		return "quota exhausted"
	case StopCanceled:
		return "canceled"
	case StopAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a discovery run.
type Result struct {
	// RunID identifies this run in logs and reports.
	RunID string
	// ChannelsFound is the number of matching channels exported.
	ChannelsFound int
	// ChannelsExamined is the number of distinct channels fetched.
	ChannelsExamined int
	// ChannelsSkipped counts channels dropped for fetch errors, hidden
	// subscriber counts, or unavailability.
	ChannelsSkipped int
	// PagesProcessed is the number of search pages fetched.
	PagesProcessed int
	// QuotaUsed is the estimated API quota spent, in units.
	QuotaUsed int
	// Stopped is why the run ended.
	Stopped StopReason
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}
