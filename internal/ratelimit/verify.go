package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orgkeys/internal/config"
	"go.uber.org/zap"
)

const keyVerifyClient = "orgkeys:verify:client:%s"

// VerifyLimiter throttles credential verification per client. The redis
// bucket is authoritative; if it fails the local bucket decides instead.
type VerifyLimiter struct {
	enabled bool
	bucket  *TokenBucket
	local   *LocalBucket
	rate    float64
	burst   int
	log     *zap.Logger
}

func NewVerifyLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*VerifyLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return &VerifyLimiter{}, nil
	}
	if limitCfg.VerifyRate <= 0 || limitCfg.VerifyBurst <= 0 {
		return nil, errors.New("verify rate limit must be positive")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &VerifyLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		local:   NewLocalBucket(),
		rate:    limitCfg.VerifyRate,
		burst:   limitCfg.VerifyBurst,
		log:     log.Named("ratelimit"),
	}, nil
}

func (l *VerifyLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Distributed reports whether decisions are shared through redis.
func (l *VerifyLimiter) Distributed() bool {
	return l.Enabled() && l.bucket != nil
}

// AllowClient admits one verification attempt from client, usually the caller IP.
func (l *VerifyLimiter) AllowClient(ctx context.Context, client string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	key := fmt.Sprintf(keyVerifyClient, client)

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
		if err == nil {
			return res
		}
		l.log.Warn("redis rate limit check failed; using local bucket", zap.Error(err))
	}

	res, err := l.local.Allow(key, l.rate, l.burst)
	if err != nil {
		l.log.Error("local rate limit check failed", zap.Error(err))
		return Result{Allowed: true}
	}
	return res
}
