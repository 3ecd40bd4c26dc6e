package interceptor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
)

// Error is returned when a hook fails. The pipeline aborts on the first one.
type Error struct {
	Hook        string
	Interceptor string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("interceptor %s failed in %s: %v", e.Interceptor, e.Hook, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Chain runs registered interceptors in registration order
type Chain struct {
	interceptors []Interceptor
	logger       *slog.Logger
}

// NewChain creates a chain over interceptors. A nil logger uses slog.Default().
func NewChain(interceptors []Interceptor, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{interceptors: interceptors, logger: logger}
}

// Len returns the number of registered interceptors
func (c *Chain) Len() int {
	return len(c.interceptors)
}

type hookFunc func(i Interceptor, ctx context.Context, ictx *Context, cfg *configbag.Bag) error

func (c *Chain) run(ctx context.Context, hook string, fn hookFunc, ictx *Context, cfg *configbag.Bag) error {
	for _, i := range c.interceptors {
		if reason, disabled := DisabledReason(cfg, i); disabled {
			c.logger.Debug("Skipping disabled interceptor", "interceptor", i.Name(), "hook", hook, "reason", reason)
			continue
		}
		if err := fn(i, ctx, ictx, cfg); err != nil {
			return &Error{Hook: hook, Interceptor: i.Name(), Err: err}
		}
	}
	return nil
}

// ModifyBeforeSerialization runs every enabled interceptor's hook
func (c *Chain) ModifyBeforeSerialization(ctx context.Context, ictx *Context, cfg *configbag.Bag) error {
	return c.run(ctx, HookBeforeSerialization, Interceptor.ModifyBeforeSerialization, ictx, cfg)
}

// ModifyBeforeRetryLoop runs every enabled interceptor's hook
func (c *Chain) ModifyBeforeRetryLoop(ctx context.Context, ictx *Context, cfg *configbag.Bag) error {
	return c.run(ctx, HookBeforeRetryLoop, Interceptor.ModifyBeforeRetryLoop, ictx, cfg)
}

// ModifyBeforeSigning runs every enabled interceptor's hook
func (c *Chain) ModifyBeforeSigning(ctx context.Context, ictx *Context, cfg *configbag.Bag) error {
	return c.run(ctx, HookBeforeSigning, Interceptor.ModifyBeforeSigning, ictx, cfg)
}

// ModifyBeforeTransmit runs every enabled interceptor's hook
func (c *Chain) ModifyBeforeTransmit(ctx context.Context, ictx *Context, cfg *configbag.Bag) error {
	return c.run(ctx, HookBeforeTransmit, Interceptor.ModifyBeforeTransmit, ictx, cfg)
}
