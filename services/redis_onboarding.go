package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/repository"
	"github.com/redis/go-redis/v9"
)

/// This file holds onboarding-specific keys: OTP resend cooldowns and the review-panel stats cache

const onboardingStatsKey = "onboarding_stats"

// AllowResend reports whether a new OTP may be sent for the session. The first
// call within the cooldown window claims the key, subsequent calls are denied
// until it expires.
func (r *RedisService) AllowResend(ctx context.Context, sessionID string, cooldown time.Duration) (bool, error) {
	key := fmt.Sprintf("otp_cooldown:%s", sessionID)

	ok, err := r.SetIfAbsent(ctx, key, time.Now().UTC().Format(time.RFC3339), cooldown)
	if err != nil {
		return false, fmt.Errorf("failed to claim resend cooldown: %w", err)
	}

	return ok, nil
}

// CacheOnboardingStats stores the aggregated dashboard counters for ttl.
func (r *RedisService) CacheOnboardingStats(ctx context.Context, stats repository.Stats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal onboarding stats: %w", err)
	}

	err = r.client.Set(ctx, onboardingStatsKey, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache onboarding stats: %w", err)
	}

	return nil
}

// GetCachedOnboardingStats retrieves the cached dashboard counters. The second
// return value is false on a cache miss.
func (r *RedisService) GetCachedOnboardingStats(ctx context.Context) (repository.Stats, bool, error) {
	var stats repository.Stats

	data, err := r.client.Get(ctx, onboardingStatsKey).Result()
	if errors.Is(err, redis.Nil) {
		return stats, false, nil
	}
	if err != nil {
		return stats, false, fmt.Errorf("failed to get cached onboarding stats: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return stats, false, fmt.Errorf("failed to unmarshal onboarding stats: %w", err)
	}

	return stats, true, nil
}

// InvalidateOnboardingStats drops the cached counters so the next dashboard
// read recomputes them.
func (r *RedisService) InvalidateOnboardingStats(ctx context.Context) error {
	return r.client.Del(ctx, onboardingStatsKey).Err()
}
