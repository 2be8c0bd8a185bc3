package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	localMaxKeys = 10000
	localIdleTTL = 10 * time.Minute
)

// LocalBucket limits per key inside this process. It backs the verifier
// when redis is not configured or not reachable.
type LocalBucket struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*localEntry
}

type localEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewLocalBucket() *LocalBucket {
	return &LocalBucket{
		now:     time.Now,
		entries: make(map[string]*localEntry),
	}
}

func (b *LocalBucket) Allow(key string, r float64, burst int) (Result, error) {
	if key == "" {
		return Result{}, errEmptyKey
	}
	if r <= 0 || burst <= 0 {
		return Result{}, errBadLimits
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	entry, ok := b.entries[key]
	if !ok {
		if len(b.entries) >= localMaxKeys {
			b.prune(now)
		}
		entry = &localEntry{limiter: rate.NewLimiter(rate.Limit(r), burst)}
		b.entries[key] = entry
	}
	entry.seen = now

	allowed := entry.limiter.AllowN(now, 1)
	remaining := entry.limiter.TokensAt(now)
	return Result{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  max(0, int(remaining)),
		RetryAfter: retryAfter(allowed, remaining, r),
	}, nil
}

func (b *LocalBucket) prune(now time.Time) {
	for key, entry := range b.entries {
		if now.Sub(entry.seen) > localIdleTTL {
			delete(b.entries, key)
		}
	}
	// All keys are active.
	if len(b.entries) >= localMaxKeys {
		clear(b.entries)
	}
}
