package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"parserator/internal/logger"
	"parserator/internal/port"
)

const (
	quotaCooldown = 60 * time.Second
	authCooldown  = 10 * time.Minute
)

// inputFault lists codes caused by the request itself. Another provider
// would reject the same input, so the chain stops there.
var inputFault = map[string]bool{
	CodeInvalidPrompt:  true,
	CodeEmptyPrompt:    true,
	CodePromptTooLong:  true,
	CodeContentBlocked: true,
}

// circuit records why and until when a provider is skipped.
type circuit struct {
	mu      sync.RWMutex
	resetAt time.Time
	code    string
}

func (c *circuit) state(now time.Time) (resetAt time.Time, code string, open bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.resetAt.IsZero() || !now.Before(c.resetAt) {
		return time.Time{}, "", false
	}
	return c.resetAt, c.code, true
}

func (c *circuit) trip(code string, resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
	c.code = code
}

// tripFor returns how long a failure with this classification keeps the
// provider out of rotation, or zero when the circuit stays closed.
func tripFor(gwErr *Error) time.Duration {
	switch gwErr.Code {
	case CodeQuotaExceeded:
		if secs, ok := gwErr.Details["retryAfterSeconds"].(int); ok && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return quotaCooldown
	case CodeInvalidAPIKey:
		return authCooldown
	}
	return 0
}

// FallbackGenerator tries providers in order. Each failure is classified:
// quota and credential failures open that provider's circuit, input faults
// end the chain, anything else moves on to the next provider.
// It implements port.TextGenerator.
type FallbackGenerator struct {
	generators []port.TextGenerator
	circuits   []*circuit
	names      []string
	now        func() time.Time
}

// NewFallbackGenerator creates a FallbackGenerator from an ordered list of providers and their names.
func NewFallbackGenerator(generators []port.TextGenerator, names []string) *FallbackGenerator {
	circuits := make([]*circuit, len(generators))
	for i := range circuits {
		circuits[i] = &circuit{}
	}
	return &FallbackGenerator{
		generators: generators,
		circuits:   circuits,
		names:      names,
		now:        time.Now,
	}
}

func (f *FallbackGenerator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	now := f.now()
	var lastErr *Error
	allQuota := true
	var earliestReset time.Time

	noteReset := func(resetAt time.Time) {
		if earliestReset.IsZero() || resetAt.Before(earliestReset) {
			earliestReset = resetAt
		}
	}

	for i, g := range f.generators {
		if resetAt, code, open := f.circuits[i].state(now); open {
			logger.Info("llm.FallbackGenerator: skipping provider",
				"provider", f.names[i], "reason", code, "circuit_open_until", resetAt.Format(time.RFC3339))
			if code == CodeQuotaExceeded {
				noteReset(resetAt)
			} else {
				allQuota = false
				lastErr = newError(code, http.StatusUnauthorized,
					fmt.Sprintf("%s skipped after credential failure", f.names[i]), nil)
			}
			continue
		}

		out, err := g.Generate(ctx, input)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		gwErr := Classify(err)
		lastErr = gwErr
		if inputFault[gwErr.Code] {
			logger.Info("llm.FallbackGenerator: input rejected", "provider", f.names[i], "code", gwErr.Code)
			return nil, gwErr
		}

		if cooldown := tripFor(gwErr); cooldown > 0 {
			resetAt := now.Add(cooldown)
			f.circuits[i].trip(gwErr.Code, resetAt)
			if gwErr.Code == CodeQuotaExceeded {
				noteReset(resetAt)
			} else {
				allQuota = false
				logger.Error("llm.FallbackGenerator: provider credentials rejected",
					"provider", f.names[i], "circuit_open_until", resetAt.Format(time.RFC3339))
				continue
			}
		} else {
			allQuota = false
		}
		logger.Warn("llm.FallbackGenerator: provider failed", "provider", f.names[i], "code", gwErr.Code, "error", err)
	}

	if lastErr == nil || allQuota {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all providers rate limited"), int(retryAfter.Seconds()))
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
