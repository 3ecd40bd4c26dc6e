package simplepresign

import (
	"context"

	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
	"github.com/tendant/simple-presign/pkg/simplepresign/interceptor"
	"github.com/tendant/simple-presign/pkg/simplepresign/serialization"
	"github.com/tendant/simple-presign/pkg/simplepresign/sigv4"
)

// Interceptor switches the signer to query-parameter placement with the
// configured expiry, and stops serialization from adding body headers the
// eventual caller may not send.
//
// It holds no mutable state and can be shared across concurrent invocations.
type Interceptor struct {
	interceptor.Base
	config          Config
	payloadOverride sigv4.SignableBody
}

// NewInterceptor creates the presigning interceptor
func NewInterceptor(config Config, payloadOverride sigv4.SignableBody) *Interceptor {
	return &Interceptor{
		config:          config,
		payloadOverride: payloadOverride,
	}
}

func (i *Interceptor) Name() string { return "PresigningInterceptor" }

// ModifyBeforeSerialization replaces the header serialization settings so no
// default Content-Length or Content-Type is emitted
func (i *Interceptor) ModifyBeforeSerialization(_ context.Context, _ *interceptor.Context, cfg *configbag.Bag) error {
	configbag.Store(cfg.InterceptorState(),
		serialization.NewHeaderSettings().
			OmitDefaultContentLength().
			OmitDefaultContentType())
	return nil
}

// ModifyBeforeSigning rewrites the operation signing config for query placement.
// Only the expiry, placement and payload override change.
func (i *Interceptor) ModifyBeforeSigning(_ context.Context, _ *interceptor.Context, cfg *configbag.Bag) error {
	signing, ok := configbag.Load[sigv4.OperationSigningConfig](cfg)
	if !ok {
		return ErrMissingSigningConfig
	}

	signing.Options.ExpiresIn = i.config.Expires()
	signing.Options.SignatureType = sigv4.SignatureTypeQueryParams
	signing.Options.PayloadOverride = i.payloadOverride

	configbag.Store(cfg.InterceptorState(), signing)
	return nil
}
