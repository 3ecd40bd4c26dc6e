package timesource

import "time"

// TimeSource abstracts the wall clock so pipeline stages never read time directly
type TimeSource interface {
	// Now returns the current time
	Now() time.Time
}

// SystemTimeSource uses the real system clock
type SystemTimeSource struct{}

// NewSystemTimeSource creates a time source backed by time.Now
func NewSystemTimeSource() *SystemTimeSource {
	return &SystemTimeSource{}
}

// Now returns the current system time
func (s *SystemTimeSource) Now() time.Time {
	return time.Now()
}

// StaticTimeSource always returns the same instant
type StaticTimeSource struct {
	t time.Time
}

// NewStaticTimeSource creates a time source pinned to t
func NewStaticTimeSource(t time.Time) *StaticTimeSource {
	return &StaticTimeSource{t: t}
}

// Now returns the pinned time
func (s *StaticTimeSource) Now() time.Time {
	return s.t
}
