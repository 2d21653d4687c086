package remote

import "errors"

var (
	// ErrNotConfigured means no API token or no model is set for the step.
	ErrNotConfigured = errors.New("remote engine not configured")
	// ErrTransient covers network failures, 429 and 5xx answers. These are retried.
	ErrTransient = errors.New("remote API temporarily unavailable")
	// ErrPredictionFailed means the model ran and reported failure or was canceled.
	ErrPredictionFailed = errors.New("remote prediction failed")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("remote API unavailable")
	// ErrTimeout means the prediction did not finish before the deadline.
	ErrTimeout = errors.New("remote prediction timed out")
	// ErrRejected covers 4xx answers other than 429.
	ErrRejected = errors.New("remote API rejected request")
)
