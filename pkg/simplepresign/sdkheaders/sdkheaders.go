// Package sdkheaders holds the interceptors that decorate every outgoing request
// with SDK metadata: an invocation id, attempt information and a user agent.
package sdkheaders

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/tendant/simple-presign/pkg/simplepresign/components"
	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
	"github.com/tendant/simple-presign/pkg/simplepresign/interceptor"
	"github.com/tendant/simple-presign/pkg/simplepresign/retries"
)

// Header names
const (
	InvocationIDHeader = "Amz-Sdk-Invocation-Id"
	RequestInfoHeader  = "Amz-Sdk-Request"
	UserAgentHeader    = "User-Agent"
	AmzUserAgentHeader = "X-Amz-User-Agent"
)

// SDKName and SDKVersion identify this library in user agent strings
const (
	SDKName    = "simple-presign"
	SDKVersion = "0.3.0"
)

// InvocationID identifies all attempts of one operation invocation
type InvocationID string

// InvocationIDInterceptor stamps a per-invocation uuid on every attempt
type InvocationIDInterceptor struct {
	interceptor.Base
	generate func() string
}

// NewInvocationIDInterceptor creates the interceptor using random uuids
func NewInvocationIDInterceptor() *InvocationIDInterceptor {
	return &InvocationIDInterceptor{generate: uuid.NewString}
}

func (i *InvocationIDInterceptor) Name() string { return "InvocationIDInterceptor" }

// ModifyBeforeRetryLoop generates the id once so retries share it
func (i *InvocationIDInterceptor) ModifyBeforeRetryLoop(_ context.Context, _ *interceptor.Context, cfg *configbag.Bag) error {
	configbag.Store(cfg.InterceptorState(), InvocationID(i.generate()))
	return nil
}

func (i *InvocationIDInterceptor) ModifyBeforeTransmit(_ context.Context, ictx *interceptor.Context, cfg *configbag.Bag) error {
	id, ok := configbag.Load[InvocationID](cfg)
	if !ok || ictx.Request == nil {
		return nil
	}
	ictx.Request.Header.Set(InvocationIDHeader, string(id))
	return nil
}

// RequestInfoInterceptor reports the attempt number and attempt bound
type RequestInfoInterceptor struct {
	interceptor.Base
}

// NewRequestInfoInterceptor creates the interceptor
func NewRequestInfoInterceptor() *RequestInfoInterceptor {
	return &RequestInfoInterceptor{}
}

func (i *RequestInfoInterceptor) Name() string { return "RequestInfoInterceptor" }

func (i *RequestInfoInterceptor) ModifyBeforeTransmit(_ context.Context, ictx *interceptor.Context, cfg *configbag.Bag) error {
	info, ok := configbag.Load[retries.AttemptInfo](cfg)
	if !ok || ictx.Request == nil {
		return nil
	}
	ictx.Request.Header.Set(RequestInfoHeader, fmt.Sprintf("attempt=%d; max=%d", info.Attempt, info.MaxAttempts))
	return nil
}

// UserAgentInterceptor sets the user agent headers before signing
type UserAgentInterceptor struct {
	interceptor.Base
	userAgent string
}

// NewUserAgentInterceptor creates the interceptor. appID is optional and is
// appended as app/<appID>.
func NewUserAgentInterceptor(appID string) *UserAgentInterceptor {
	ua := fmt.Sprintf("%s/%s os/%s lang/go#%s", SDKName, SDKVersion, runtime.GOOS, runtime.Version())
	if appID != "" {
		ua += " app/" + appID
	}
	return &UserAgentInterceptor{userAgent: ua}
}

func (i *UserAgentInterceptor) Name() string { return "UserAgentInterceptor" }

// UserAgent returns the value written to the headers
func (i *UserAgentInterceptor) UserAgent() string {
	return i.userAgent
}

func (i *UserAgentInterceptor) ModifyBeforeSigning(_ context.Context, ictx *interceptor.Context, _ *configbag.Bag) error {
	if ictx.Request == nil {
		return nil
	}
	ictx.Request.Header.Set(UserAgentHeader, i.userAgent)
	ictx.Request.Header.Set(AmzUserAgentHeader, i.userAgent)
	return nil
}

// Plugin registers all three interceptors
type Plugin struct {
	components *components.Builder
}

// NewPlugin creates the plugin
func NewPlugin(appID string) *Plugin {
	return &Plugin{
		components: components.NewBuilder("SDKHeadersPlugin").
			WithInterceptor(NewInvocationIDInterceptor()).
			WithInterceptor(NewRequestInfoInterceptor()).
			WithInterceptor(NewUserAgentInterceptor(appID)),
	}
}

// Config returns nil; the plugin contributes no configuration
func (p *Plugin) Config() *configbag.FrozenLayer {
	return nil
}

func (p *Plugin) RuntimeComponents() *components.Builder {
	return p.components
}
