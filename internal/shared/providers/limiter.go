package providers

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// LocalLimiter is an in-process token bucket per marketplace. Use the Redis
// limiter when several processor replicas share one marketplace quota.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[marketplace.Provider]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewLocalLimiter allows rps requests per second with the given burst per provider.
func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LocalLimiter{
		limiters: make(map[marketplace.Provider]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until provider has a token or ctx is done.
func (l *LocalLimiter) Wait(ctx context.Context, provider marketplace.Provider) error {
	return l.get(provider).Wait(ctx)
}

func (l *LocalLimiter) get(provider marketplace.Provider) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[provider]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[provider] = lim
	}
	return lim
}
