package components

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
	"github.com/tendant/simple-presign/pkg/simplepresign/interceptor"
	"github.com/tendant/simple-presign/pkg/simplepresign/retries"
	"github.com/tendant/simple-presign/pkg/simplepresign/timesource"
)

type namedInterceptor struct {
	interceptor.Base
	name string
}

func (n *namedInterceptor) Name() string { return n.name }

type stubPlugin struct {
	layer   *configbag.FrozenLayer
	builder *Builder
}

func (s stubPlugin) Config() *configbag.FrozenLayer { return s.layer }
func (s stubPlugin) RuntimeComponents() *Builder { return s.builder }

func TestBuilder_BuildDefaults(t *testing.T) {
	c, err := NewBuilder("empty").Build()
	require.NoError(t, err)
	assert.Empty(t, c.Interceptors())
	assert.IsType(t, &retries.Standard{}, c.RetryStrategy())
	assert.IsType(t, &timesource.SystemTimeSource{}, c.TimeSource())
}

func TestBuilder_BuildRejectsNilInterceptor(t *testing.T) {
	_, err := NewBuilder("bad").WithInterceptor(nil).Build()
	assert.ErrorIs(t, err, ErrNilInterceptor)
}

func TestBuilder_Merge(t *testing.T) {
	pinned := timesource.NewStaticTimeSource(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	base := NewBuilder("base").
		WithInterceptor(&namedInterceptor{name: "a"}).
		WithRetryStrategy(retries.NewStandard(3))
	override := NewBuilder("override").
		WithInterceptor(&namedInterceptor{name: "b"}).
		WithRetryStrategy(retries.NewNeverRetry()).
		WithTimeSource(pinned)

	merged := base.Merge(override)

	names := []string{}
	for _, i := range merged.Interceptors() {
		names = append(names, i.Name())
	}
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, retries.NewNeverRetry(), merged.RetryStrategy())
	assert.Same(t, pinned, merged.TimeSource())

	// inputs are left untouched
	assert.Len(t, base.Interceptors(), 1)
	assert.IsType(t, &retries.Standard{}, base.RetryStrategy())
	assert.Nil(t, base.TimeSource())
	assert.Len(t, override.Interceptors(), 1)
}

func TestBuilder_MergeKeepsEarlierWhenUnset(t *testing.T) {
	pinned := timesource.NewStaticTimeSource(time.Unix(0, 0))
	base := NewBuilder("base").WithTimeSource(pinned)

	merged := base.Merge(NewBuilder("empty")).Merge(nil)
	assert.Same(t, pinned, merged.TimeSource())
}

func TestApply(t *testing.T) {
	layer := configbag.NewLayer("p1")
	configbag.Store(layer, "value")

	builder, layers := Apply(NewBuilder("base"),
		stubPlugin{layer: layer.Freeze(), builder: NewBuilder("p1").WithInterceptor(&namedInterceptor{name: "x"})},
		nil,
		stubPlugin{},
	)

	assert.Len(t, layers, 1)
	assert.Len(t, builder.Interceptors(), 1)
}
