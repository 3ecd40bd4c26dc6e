// Package orchestrator runs an operation through the request pipeline:
// plugin assembly, interceptor hooks, serialization, signing, the retry loop and
// transmission.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/tendant/simple-presign/pkg/simplepresign/components"
	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
	"github.com/tendant/simple-presign/pkg/simplepresign/interceptor"
	"github.com/tendant/simple-presign/pkg/simplepresign/retries"
	"github.com/tendant/simple-presign/pkg/simplepresign/serialization"
	"github.com/tendant/simple-presign/pkg/simplepresign/sigv4"
)

var (
	// ErrNoSerializer is returned when an operation has no serializer
	ErrNoSerializer = errors.New("orchestrator: operation has no serializer")

	// ErrBodyNotReplayable is returned when a retry would resend a body that
	// was already consumed
	ErrBodyNotReplayable = errors.New("orchestrator: request body cannot be rewound for retry")
)

// StopPoint tells Invoke where to end the pipeline
type StopPoint int

const (
	// StopNone runs the pipeline to completion
	StopNone StopPoint = iota
	// StopBeforeTransmit returns the signed request instead of sending it
	StopBeforeTransmit
)

// Serializer turns an operation input into an HTTP request. It returns the
// request to continue with (SetStream returns a copy) and the body length, or
// -1 when the length is unknown.
type Serializer interface {
	Serialize(ctx context.Context, input any, req *smithyhttp.Request) (*smithyhttp.Request, int64, error)
}

// SerializerFunc adapts a function to Serializer
type SerializerFunc func(ctx context.Context, input any, req *smithyhttp.Request) (*smithyhttp.Request, int64, error)

func (f SerializerFunc) Serialize(ctx context.Context, input any, req *smithyhttp.Request) (*smithyhttp.Request, int64, error) {
	return f(ctx, input, req)
}

// Signer signs a request with the configuration found in the config bag
type Signer interface {
	Sign(ctx context.Context, req *smithyhttp.Request, cfg sigv4.OperationSigningConfig, signingTime time.Time) error
}

// Operation is one invocation's input and how to serialize it
type Operation struct {
	Name       string
	Input      any
	Serializer Serializer
}

// Result is the outcome of a successful invocation. Response is nil when the
// pipeline stopped before transmit.
type Result struct {
	Request  *smithyhttp.Request
	Response *http.Response
	Attempts int
}

// ResponseError is returned for responses with a non-2xx status. The caller
// owns Response.Body.
type ResponseError struct {
	Response *http.Response
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("orchestrator: request failed with status %s", e.Response.Status)
}

// HTTPStatusCode lets retry classification inspect the status
func (e *ResponseError) HTTPStatusCode() int {
	return e.Response.StatusCode
}

// Orchestrator executes operations. It is safe for concurrent use; every
// invocation gets its own config bag.
type Orchestrator struct {
	signer     Signer
	httpClient aws.HTTPClient
	logger     *slog.Logger
}

// Option is a functional option for New
type Option func(*Orchestrator)

// WithHTTPClient sets the client used to transmit requests
func WithHTTPClient(client aws.HTTPClient) Option {
	return func(o *Orchestrator) {
		o.httpClient = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an orchestrator. signer may be nil, in which case requests are
// sent unsigned.
func New(signer Signer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		signer:     signer,
		httpClient: awshttp.NewBuildableClient(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Presign runs op up to signing and returns the signed request without sending it
func (o *Orchestrator) Presign(ctx context.Context, op Operation, plugins ...components.Plugin) (*smithyhttp.Request, error) {
	result, err := o.Invoke(ctx, op, StopBeforeTransmit, plugins...)
	if err != nil {
		return nil, err
	}
	return result.Request, nil
}

// Invoke runs op through the pipeline assembled from plugins, in order. Plugin
// config layers are stacked so later plugins shadow earlier ones; components
// are merged the same way.
func (o *Orchestrator) Invoke(ctx context.Context, op Operation, stop StopPoint, plugins ...components.Plugin) (*Result, error) {
	if op.Serializer == nil {
		return nil, ErrNoSerializer
	}

	builder, layers := components.Apply(components.NewBuilder(op.Name), plugins...)
	rc, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: invalid runtime components for %s: %w", op.Name, err)
	}

	cfg := configbag.New(op.Name)
	for _, layer := range layers {
		cfg.AddLayer(layer)
	}

	chain := interceptor.NewChain(rc.Interceptors(), o.logger)
	ictx := &interceptor.Context{Input: op.Input}

	if err := chain.ModifyBeforeSerialization(ctx, ictx, cfg); err != nil {
		return nil, err
	}

	req := smithyhttp.NewStackRequest().(*smithyhttp.Request)
	req, length, err := op.Serializer.Serialize(ctx, op.Input, req)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: failed to serialize %s: %w", op.Name, err)
	}
	settings, _ := configbag.Load[serialization.HeaderSettings](cfg)
	serialization.ApplyDefaultHeaders(req, length, settings)
	ictx.Request = req

	if err := chain.ModifyBeforeRetryLoop(ctx, ictx, cfg); err != nil {
		return nil, err
	}

	strategy := rc.RetryStrategy()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptReq := req.Clone()
		if attempt > 1 && attemptReq.GetStream() != nil {
			if !attemptReq.IsStreamSeekable() {
				return nil, fmt.Errorf("%w: %s attempt %d", ErrBodyNotReplayable, op.Name, attempt)
			}
			if err := attemptReq.RewindStream(); err != nil {
				return nil, fmt.Errorf("orchestrator: failed to rewind body for %s: %w", op.Name, err)
			}
		}
		ictx.Request = attemptReq
		configbag.Store(cfg.InterceptorState(), retries.AttemptInfo{Attempt: attempt, MaxAttempts: strategy.MaxAttempts()})

		if err := chain.ModifyBeforeSigning(ctx, ictx, cfg); err != nil {
			return nil, err
		}
		if err := o.sign(ctx, op.Name, attemptReq, cfg, rc); err != nil {
			return nil, err
		}
		if err := chain.ModifyBeforeTransmit(ctx, ictx, cfg); err != nil {
			return nil, err
		}

		if stop == StopBeforeTransmit {
			return &Result{Request: attemptReq, Attempts: attempt}, nil
		}

		resp, err := o.httpClient.Do(attemptReq.Build(ctx))
		if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
			err = &ResponseError{Response: resp}
		}
		if err == nil {
			return &Result{Request: attemptReq, Response: resp, Attempts: attempt}, nil
		}

		delay, retry := strategy.ShouldRetry(attempt, err)
		if !retry {
			return nil, err
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		o.logger.Info("Retrying request", "operation", op.Name, "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (o *Orchestrator) sign(ctx context.Context, name string, req *smithyhttp.Request, cfg *configbag.Bag, rc *components.Components) error {
	signing, ok := configbag.Load[sigv4.OperationSigningConfig](cfg)
	if !ok || o.signer == nil {
		o.logger.Debug("Sending request unsigned", "operation", name)
		return nil
	}
	if err := o.signer.Sign(ctx, req, signing, rc.TimeSource().Now()); err != nil {
		return fmt.Errorf("orchestrator: failed to sign %s: %w", name, err)
	}
	return nil
}
