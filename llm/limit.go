package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// LimitedVision gates a VisionProvider behind a token bucket. Callers block
// in Wait until a token is available or ctx ends.
type LimitedVision struct {
	Inner   VisionProvider
	Limiter *rate.Limiter
}

func (l LimitedVision) Describe(ctx context.Context, instruction, asset string) (string, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Inner.Describe(ctx, instruction, asset)
}

type LimitedText struct {
	Inner   TextProvider
	Limiter *rate.Limiter
}

func (l LimitedText) Complete(ctx context.Context, instruction, input string) (string, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Inner.Complete(ctx, instruction, input)
}

// LimitVision wraps p with perMinute requests per minute and the given burst.
// perMinute <= 0 returns p unchanged.
func LimitVision(p VisionProvider, perMinute float64, burst int) VisionProvider {
	if perMinute <= 0 {
		return p
	}
	return LimitedVision{Inner: p, Limiter: rate.NewLimiter(rate.Limit(perMinute/60), max(burst, 1))}
}

func LimitText(p TextProvider, perMinute float64, burst int) TextProvider {
	if perMinute <= 0 {
		return p
	}
	return LimitedText{Inner: p, Limiter: rate.NewLimiter(rate.Limit(perMinute/60), max(burst, 1))}
}
