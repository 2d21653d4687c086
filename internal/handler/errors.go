package handler

import (
	"context"
	"errors"
	"net/http"

	"photoreviver/internal/service"
	"photoreviver/internal/service/imaging"
	"photoreviver/internal/service/remote"
)

// statusFor maps a restoration error to its HTTP status and response detail.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, imaging.ErrInvalidStep), errors.Is(err, service.ErrUnknownEngine):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, imaging.ErrDecode):
		return http.StatusBadRequest, "Could not decode image"

	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable, "Server busy - too many restorations in progress, please retry"
	case errors.Is(err, service.ErrStopped):
		return http.StatusServiceUnavailable, "Server is shutting down"
	case errors.Is(err, remote.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Remote engine is not configured"
	case errors.Is(err, remote.ErrUnavailable):
		return http.StatusServiceUnavailable, "AI service unavailable - please retry later"

	// A client that went away never sees the answer; it is logged as a timeout.
	case errors.Is(err, remote.ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "Processing timeout - image may be too large"

	case errors.Is(err, remote.ErrPredictionFailed), errors.Is(err, remote.ErrTransient), errors.Is(err, remote.ErrRejected):
		return http.StatusBadGateway, "Photo processing failed: " + err.Error()
	}
	return http.StatusInternalServerError, "Error processing image: " + err.Error()
}
