package sigv4

import (
	"time"

	"github.com/tendant/simple-presign/pkg/simplepresign/components"
	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
)

// SignatureType specifies where the signature is placed
type SignatureType int

const (
	// SignatureTypeHeader carries the signature in the Authorization header
	SignatureTypeHeader SignatureType = iota
	// SignatureTypeQueryParams carries the signature in query parameters
	SignatureTypeQueryParams
)

func (t SignatureType) String() string {
	switch t {
	case SignatureTypeHeader:
		return "header"
	case SignatureTypeQueryParams:
		return "query_params"
	default:
		return "unknown"
	}
}

// SigningOptions tune a single signing operation
type SigningOptions struct {
	// ExpiresIn bounds the validity of a query-signed request. Zero means unset.
	ExpiresIn time.Duration

	SignatureType SignatureType

	// PayloadOverride replaces the hash of the request body when set
	PayloadOverride SignableBody

	// AddPayloadHashHeader adds X-Amz-Content-Sha256 to header-signed requests.
	// Amazon S3 requires it.
	AddPayloadHashHeader bool

	// DisableURIPathEscaping signs the path as-is. Amazon S3 requires it.
	DisableURIPathEscaping bool

	// DisableHeaderHoisting keeps X-Amz-* headers out of the query string of
	// query-signed requests
	DisableHeaderHoisting bool
}

// OperationSigningConfig is the signing configuration for one operation. It is
// read from the config bag by the signer right before signing.
type OperationSigningConfig struct {
	Region  string
	Service string
	Options SigningOptions
}

// SigningPlugin seeds the config bag with the operation's initial signing
// configuration. Later stages may load, modify and store it again.
type SigningPlugin struct {
	layer *configbag.FrozenLayer
}

// NewSigningPlugin creates the plugin. The initial configuration always uses
// header-based placement.
func NewSigningPlugin(cfg OperationSigningConfig) *SigningPlugin {
	cfg.Options.SignatureType = SignatureTypeHeader
	layer := configbag.NewLayer("SigV4Signing")
	configbag.Store(layer, cfg)
	return &SigningPlugin{layer: layer.Freeze()}
}

// Config returns the layer holding the initial signing configuration
func (p *SigningPlugin) Config() *configbag.FrozenLayer {
	return p.layer
}

// RuntimeComponents returns nil; signing registers no components
func (p *SigningPlugin) RuntimeComponents() *components.Builder {
	return nil
}
