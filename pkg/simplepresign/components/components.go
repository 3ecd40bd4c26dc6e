// Package components assembles the shared runtime pieces of a pipeline
// (interceptors, retry strategy, time source) from the builders contributed by
// plugins.
package components

import (
	"errors"

	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
	"github.com/tendant/simple-presign/pkg/simplepresign/interceptor"
	"github.com/tendant/simple-presign/pkg/simplepresign/retries"
	"github.com/tendant/simple-presign/pkg/simplepresign/timesource"
)

// ErrNilInterceptor is returned by Build when a nil interceptor was registered
var ErrNilInterceptor = errors.New("components: nil interceptor registered")

// Plugin contributes configuration and components to a pipeline invocation
type Plugin interface {
	// Config returns a frozen layer to push onto the config bag, or nil
	Config() *configbag.FrozenLayer

	// RuntimeComponents returns components to merge, or nil. The builder stays
	// owned by the plugin and is never modified by the pipeline.
	RuntimeComponents() *Builder
}

// Builder collects components under a name
type Builder struct {
	name          string
	interceptors  []interceptor.Interceptor
	retryStrategy retries.Strategy
	timeSource    timesource.TimeSource
}

// NewBuilder creates an empty builder
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Name returns the builder name
func (b *Builder) Name() string {
	return b.name
}

// WithInterceptor registers an interceptor and returns the builder
func (b *Builder) WithInterceptor(i interceptor.Interceptor) *Builder {
	b.interceptors = append(b.interceptors, i)
	return b
}

// WithRetryStrategy sets the retry strategy and returns the builder
func (b *Builder) WithRetryStrategy(s retries.Strategy) *Builder {
	b.retryStrategy = s
	return b
}

// WithTimeSource sets the time source and returns the builder
func (b *Builder) WithTimeSource(ts timesource.TimeSource) *Builder {
	b.timeSource = ts
	return b
}

// Interceptors returns a copy of the registered interceptors
func (b *Builder) Interceptors() []interceptor.Interceptor {
	out := make([]interceptor.Interceptor, len(b.interceptors))
	copy(out, b.interceptors)
	return out
}

// RetryStrategy returns the configured retry strategy, or nil
func (b *Builder) RetryStrategy() retries.Strategy {
	return b.retryStrategy
}

// TimeSource returns the configured time source, or nil
func (b *Builder) TimeSource() timesource.TimeSource {
	return b.timeSource
}

// Merge returns a new builder holding b's components followed by other's.
// Interceptors accumulate; a retry strategy or time source set in other
// replaces the one in b. Neither input is modified.
func (b *Builder) Merge(other *Builder) *Builder {
	merged := &Builder{
		name:          b.name,
		interceptors:  b.Interceptors(),
		retryStrategy: b.retryStrategy,
		timeSource:    b.timeSource,
	}
	if other == nil {
		return merged
	}
	merged.interceptors = append(merged.interceptors, other.interceptors...)
	if other.retryStrategy != nil {
		merged.retryStrategy = other.retryStrategy
	}
	if other.timeSource != nil {
		merged.timeSource = other.timeSource
	}
	return merged
}

// Build validates the builder and fills unset components with defaults: the
// system clock and the standard retry strategy.
func (b *Builder) Build() (*Components, error) {
	for _, i := range b.interceptors {
		if i == nil {
			return nil, ErrNilInterceptor
		}
	}

	c := &Components{
		interceptors:  b.Interceptors(),
		retryStrategy: b.retryStrategy,
		timeSource:    b.timeSource,
	}
	if c.retryStrategy == nil {
		c.retryStrategy = retries.NewStandard(0)
	}
	if c.timeSource == nil {
		c.timeSource = timesource.NewSystemTimeSource()
	}
	return c, nil
}

// Components is the validated, immutable result of Build
type Components struct {
	interceptors  []interceptor.Interceptor
	retryStrategy retries.Strategy
	timeSource    timesource.TimeSource
}

// Interceptors returns the registered interceptors in order
func (c *Components) Interceptors() []interceptor.Interceptor {
	out := make([]interceptor.Interceptor, len(c.interceptors))
	copy(out, c.interceptors)
	return out
}

// RetryStrategy returns the retry strategy
func (c *Components) RetryStrategy() retries.Strategy {
	return c.retryStrategy
}

// TimeSource returns the time source
func (c *Components) TimeSource() timesource.TimeSource {
	return c.timeSource
}

// Apply merges the contributions of plugins, in order, into base
func Apply(base *Builder, plugins ...Plugin) (*Builder, []*configbag.FrozenLayer) {
	merged := base
	var layers []*configbag.FrozenLayer
	for _, p := range plugins {
		if p == nil {
			continue
		}
		if layer := p.Config(); layer != nil {
			layers = append(layers, layer)
		}
		merged = merged.Merge(p.RuntimeComponents())
	}
	return merged, layers
}
