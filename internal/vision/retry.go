package vision

import (
	"net/http"
	"time"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/logging"
)

// withRetry runs fn once and then retries it up to c.RetryAttempts more times
// with linear backoff (RetryDelay * attempt), stopping as soon as fn succeeds or returns a
// non-retryable error. Adapted from the teacher pack's retry idiom in
// Skryldev's core/processor.go runWithRetry, generalized from ImageData
// pipeline steps to a plain func() error.
func (c *Client) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || !apperr.IsRetryable(err) {
			return err
		}
		if attempt < c.RetryAttempts {
			wait := c.RetryDelay * time.Duration(attempt+1)
			logging.Warnf("vision: %s transient error (attempt %d/%d), retrying in %s: %v",
				op, attempt+1, c.RetryAttempts, wait, err)
			time.Sleep(wait)
		}
	}
	return err
}

// classifyHTTPError maps an HTTP status code to a categorized error.
// 401/402/403/400 are fatal (auth/quota/invalid-argument); 429 and 5xx are
// transient; everything else is treated as a decode-time failure.
func classifyHTTPError(op string, status int, body string) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusPaymentRequired, status == http.StatusBadRequest:
		return apperr.New(apperr.CategoryVisionAuth, op, httpError{status: status, body: body})
	case status == http.StatusTooManyRequests, status >= 500:
		return apperr.Transient(op, httpError{status: status, body: body})
	default:
		return apperr.New(apperr.CategoryDecode, op, httpError{status: status, body: body})
	}
}

type httpError struct {
	status int
	body   string
}

func (e httpError) Error() string {
	return http.StatusText(e.status) + ": " + e.body
}
