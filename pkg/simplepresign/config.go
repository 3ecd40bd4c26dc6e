package simplepresign

import (
	"time"

	"github.com/tendant/simple-presign/pkg/simplepresign/timesource"
)

const (
	// MinExpires is the shortest lifetime X-Amz-Expires can express
	MinExpires = time.Second

	// MaxExpires is the longest lifetime SigV4 accepts for a presigned request
	MaxExpires = 7 * 24 * time.Hour
)

// Config describes the validity window of one presigned request
type Config struct {
	startTime time.Time
	expires   time.Duration
}

// ConfigOption is a functional option for NewConfig
type ConfigOption func(*configOptions)

type configOptions struct {
	startTime  time.Time
	timeSource timesource.TimeSource
}

// WithStartTime pins the instant the signature is computed for
func WithStartTime(t time.Time) ConfigOption {
	return func(o *configOptions) {
		o.startTime = t
	}
}

// WithTimeSource reads the start time from ts instead of the system clock.
// WithStartTime takes precedence.
func WithTimeSource(ts timesource.TimeSource) ConfigOption {
	return func(o *configOptions) {
		o.timeSource = ts
	}
}

// NewConfig creates a presigning config valid for expires, starting now unless
// a start time is given
func NewConfig(expires time.Duration, opts ...ConfigOption) (Config, error) {
	o := configOptions{timeSource: timesource.NewSystemTimeSource()}
	for _, opt := range opts {
		opt(&o)
	}

	if expires < MinExpires {
		return Config{}, ErrExpiresUnset
	}
	if expires > MaxExpires {
		return Config{}, ErrExpiresTooLong
	}

	start := o.startTime
	if start.IsZero() {
		start = o.timeSource.Now()
	}

	return Config{startTime: start, expires: expires}, nil
}

// StartTime returns the instant the signature is anchored to
func (c Config) StartTime() time.Time {
	return c.startTime
}

// Expires returns how long the presigned request stays valid
func (c Config) Expires() time.Duration {
	return c.expires
}

// ExpiresAt returns the instant the presigned request stops being valid
func (c Config) ExpiresAt() time.Time {
	return c.startTime.Add(c.expires)
}
