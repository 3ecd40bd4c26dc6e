// Package interceptor defines the hooks a request pipeline invokes while it
// builds, signs and sends a request.
//
// The set of hooks is closed. They run in this order for every request:
//
//	ModifyBeforeSerialization  once, before the input is serialized
//	ModifyBeforeRetryLoop      once, after serialization
//	ModifyBeforeSigning        once per attempt
//	ModifyBeforeTransmit       once per attempt, after signing
//
// Implementations embed Base and override only the hooks they need.
package interceptor

import (
	"context"

	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
)

// Hook names used in logs and errors
const (
	HookBeforeSerialization = "modify_before_serialization"
	HookBeforeRetryLoop     = "modify_before_retry_loop"
	HookBeforeSigning       = "modify_before_signing"
	HookBeforeTransmit      = "modify_before_transmit"
)

// Context is the in-flight state handed to every hook. Request is nil until the
// input has been serialized.
type Context struct {
	Input   any
	Request *smithyhttp.Request
}

// Interceptor observes or mutates a request at fixed points of the pipeline
type Interceptor interface {
	// Name identifies the interceptor in logs and errors
	Name() string

	ModifyBeforeSerialization(ctx context.Context, ictx *Context, cfg *configbag.Bag) error
	ModifyBeforeRetryLoop(ctx context.Context, ictx *Context, cfg *configbag.Bag) error
	ModifyBeforeSigning(ctx context.Context, ictx *Context, cfg *configbag.Bag) error
	ModifyBeforeTransmit(ctx context.Context, ictx *Context, cfg *configbag.Bag) error
}

// Base implements every hook as a no-op
type Base struct{}

func (Base) ModifyBeforeSerialization(context.Context, *Context, *configbag.Bag) error {
	return nil
}

func (Base) ModifyBeforeRetryLoop(context.Context, *Context, *configbag.Bag) error {
	return nil
}

func (Base) ModifyBeforeSigning(context.Context, *Context, *configbag.Bag) error {
	return nil
}

func (Base) ModifyBeforeTransmit(context.Context, *Context, *configbag.Bag) error {
	return nil
}
