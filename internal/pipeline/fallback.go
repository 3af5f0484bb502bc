package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/VicerInfoTech/TIF-AI/internal/observability"
	"github.com/VicerInfoTech/TIF-AI/internal/provider"
)

// runWithFallback walks the provider roster in configured order until one
// attempt succeeds. Each attempt gets its own timeout. A malformed answer
// earns the same provider exactly one immediate retry before the loop moves
// on; transport failures and timeouts move on directly. When the roster is
// exhausted the returned error names every provider tried, in order, once.
func (p *Pipeline) runWithFallback(ctx context.Context, operation string, attempt func(context.Context, provider.Provider) error) error {
	if len(p.providers) == 0 {
		return &Error{Kind: KindAllProvidersExhausted, Message: "no providers configured"}
	}

	var attempted []string
	var lastErr error
	for _, prov := range p.providers {
		attempted = append(attempted, prov.Name())
		retried := false
		for {
			err := p.attemptOnce(ctx, prov, attempt)
			if err == nil {
				observability.ObserveProviderAttempt(prov.Name(), operation, "ok")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if errors.Is(err, provider.ErrMalformedOutput) && !retried {
				observability.ObserveProviderAttempt(prov.Name(), operation, "malformed")
				p.logger.WarnContext(ctx, "provider returned malformed output, retrying once",
					slog.String("provider", prov.Name()),
					slog.String("operation", operation),
				)
				retried = true
				continue
			}
			observability.ObserveProviderAttempt(prov.Name(), operation, "error")
			p.logger.WarnContext(ctx, "provider attempt failed",
				slog.String("provider", prov.Name()),
				slog.String("operation", operation),
				slog.String("error", err.Error()),
			)
			break
		}
	}

	return &Error{
		Kind:      KindAllProvidersExhausted,
		Message:   "every provider failed for " + operation,
		Providers: attempted,
		Err:       lastErr,
	}
}

func (p *Pipeline) attemptOnce(ctx context.Context, prov provider.Provider, attempt func(context.Context, provider.Provider) error) error {
	attemptCtx := ctx
	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()
	}
	return attempt(attemptCtx, prov)
}
