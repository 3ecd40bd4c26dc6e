package simplepresign

import (
	"github.com/tendant/simple-presign/pkg/simplepresign/components"
	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
	"github.com/tendant/simple-presign/pkg/simplepresign/interceptor"
	"github.com/tendant/simple-presign/pkg/simplepresign/retries"
	"github.com/tendant/simple-presign/pkg/simplepresign/sdkheaders"
	"github.com/tendant/simple-presign/pkg/simplepresign/sigv4"
	"github.com/tendant/simple-presign/pkg/simplepresign/timesource"
)

// DisabledReason labels the interceptors a presigned request switches off
const DisabledReason = "presigning"

// Plugin wires the presigning interceptor into a pipeline together with a
// clock pinned to the start time and a strategy that never retries. Its config
// layer disables the interceptors that would stamp request-specific metadata
// onto the URL.
type Plugin struct {
	components *components.Builder
	layer      *configbag.FrozenLayer
}

// NewPlugin creates the plugin for one presign operation
func NewPlugin(config Config, payloadOverride sigv4.SignableBody) *Plugin {
	layer := configbag.NewLayer("Presigning")
	interceptor.StoreDisabled(layer, interceptor.Disable[*sdkheaders.InvocationIDInterceptor](DisabledReason))
	interceptor.StoreDisabled(layer, interceptor.Disable[*sdkheaders.RequestInfoInterceptor](DisabledReason))
	interceptor.StoreDisabled(layer, interceptor.Disable[*sdkheaders.UserAgentInterceptor](DisabledReason))

	return &Plugin{
		components: components.NewBuilder("PresigningPlugin").
			WithInterceptor(NewInterceptor(config, payloadOverride)).
			WithRetryStrategy(retries.NewNeverRetry()).
			WithTimeSource(timesource.NewStaticTimeSource(config.StartTime())),
		layer: layer.Freeze(),
	}
}

// Config returns the layer disabling the SDK metadata interceptors
func (p *Plugin) Config() *configbag.FrozenLayer {
	return p.layer
}

// RuntimeComponents returns the interceptor, retry strategy and time source.
// The builder remains owned by the plugin.
func (p *Plugin) RuntimeComponents() *components.Builder {
	return p.components
}
