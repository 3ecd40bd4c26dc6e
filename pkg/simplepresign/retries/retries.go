// Package retries defines how the pipeline decides whether a failed attempt is
// tried again.
package retries

import (
	"time"

	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
)

// Strategy decides how many attempts a request gets and whether a failed
// attempt is retried
type Strategy interface {
	// MaxAttempts returns the upper bound on attempts, including the first one
	MaxAttempts() int

	// ShouldRetry is consulted after attempt (1-based) failed with err. It returns
	// the delay before the next attempt and whether to make one.
	ShouldRetry(attempt int, err error) (time.Duration, bool)
}

// AttemptInfo is published into the config bag before each attempt
type AttemptInfo struct {
	Attempt     int
	MaxAttempts int
}

// Standard retries transient failures using the AWS SDK error classification and
// exponential backoff with jitter
type Standard struct {
	retryer *awsretry.Standard
}

// NewStandard creates a standard strategy. maxAttempts <= 0 keeps the SDK default.
func NewStandard(maxAttempts int) *Standard {
	return &Standard{
		retryer: awsretry.NewStandard(func(o *awsretry.StandardOptions) {
			if maxAttempts > 0 {
				o.MaxAttempts = maxAttempts
			}
		}),
	}
}

// MaxAttempts returns the configured attempt bound
func (s *Standard) MaxAttempts() int {
	return s.retryer.MaxAttempts()
}

// ShouldRetry retries retryable errors until the attempt bound is reached
func (s *Standard) ShouldRetry(attempt int, err error) (time.Duration, bool) {
	if err == nil || attempt >= s.retryer.MaxAttempts() {
		return 0, false
	}
	if !s.retryer.IsErrorRetryable(err) {
		return 0, false
	}
	delay, derr := s.retryer.RetryDelay(attempt, err)
	if derr != nil {
		return 0, false
	}
	return delay, true
}

// NeverRetry allows exactly one attempt. It never classifies the outcome.
type NeverRetry struct{}

// NewNeverRetry creates a strategy that makes a single attempt
func NewNeverRetry() NeverRetry {
	return NeverRetry{}
}

// MaxAttempts always returns 1
func (NeverRetry) MaxAttempts() int {
	return 1
}

// ShouldRetry always returns false
func (NeverRetry) ShouldRetry(int, error) (time.Duration, bool) {
	return 0, false
}
