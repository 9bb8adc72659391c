package ytgrowth

import (
	"ytgrowth/excel"
	"ytgrowth/retry"
	"ytgrowth/youtube"
)

// The root package re-exports the error surface of its sub-packages, so
// callers of Run can match failures without importing anything else.
//
// Sentinels match with errors.Is:
//
//	if errors.Is(err, ytgrowth.ErrQuotaExhausted) {
//		fmt.Println("Out of API quota for today")
//	}
//
// Typed errors carry detail, extracted with errors.As:
//
//	var apiErr *ytgrowth.APIError
//	if errors.As(err, &apiErr) {
//		fmt.Printf("API call %s failed: %v\n", apiErr.Op, apiErr.Err)
//	}

// Where each error comes from:
//
// youtube:
//   - ErrChannelNotFound: channel is gone, terminated, or never existed
//   - ErrQuotaExhausted: daily API quota budget spent
//   - ErrMissingAPIKey: no API key configured
//   - ErrInvalidChannelID: channel ID is not a UC identifier
//   - APIError: failure detail from a Data API call
//
// excel:
//   - ExportError: failure while building or writing the workbook
//   - ErrLockTimeout: another process held the workbook lock
//
// retry:
//   - RetryableError: a call still failing after its retry budget

// Aliases keep the sub-package types usable under the root name.
type (
	// APIError carries the operation and cause of a failed Data API call.
	APIError = youtube.APIError
	// ExportError carries the operation and path of a failed workbook write.
	ExportError = excel.ExportError
	// RetryableError reports a call that kept failing after its retries.
	RetryableError = retry.RetryableError
)

// Sentinels re-exported from the sub-packages.
var (
	// ErrChannelNotFound means the channel is gone or never existed.
	ErrChannelNotFound = youtube.ErrChannelNotFound
	// ErrQuotaExhausted means the daily API quota budget is spent.
	ErrQuotaExhausted = youtube.ErrQuotaExhausted
	// ErrMissingAPIKey means no API key was configured.
	ErrMissingAPIKey = youtube.ErrMissingAPIKey
	// ErrInvalidChannelID means a channel identifier is malformed.
	ErrInvalidChannelID = youtube.ErrInvalidChannelID
	// ErrLockTimeout means another process held the workbook lock for the
	// whole wait window.
	ErrLockTimeout = excel.ErrLockTimeout
)

// IsRetryable reports whether err is worth retrying. Context cancellation
// is not; most everything else is.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
