package stats

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultTimeout = 20 * time.Second

type chain struct {
	providers []Provider
}

// Chain tries providers in order; the first answer wins.
func Chain(providers ...Provider) Provider {
	list := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return &chain{providers: list}
}

func (c *chain) Name() string { return "chain" }

func (c *chain) FetchVideoStats(ctx context.Context, url string) (*Stats, error) {
	var errs []error
	for _, p := range c.providers {
		s, err := Fetch(ctx, p, url)
		if err == nil {
			return s, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, errors.Join(errs...))
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every call to next.
func WithTimeout(next Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutProvider{next: next, timeout: timeout}
}

func (t *timeoutProvider) Name() string { return t.next.Name() }

func (t *timeoutProvider) FetchVideoStats(ctx context.Context, url string) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.FetchVideoStats(ctx, url)
}
