// RateLimiter proactively throttles LLM calls against a shared Redis
// counter before they go out, so a fleet of batch-processor workers (spec
// §4.7's "configurable pool size") sharing one provider quota doesn't blow
// past it. Adapted from the teacher's internal/llm/rate_limiter.go
// (Gemini-specific RPM/TPM/RPD counters via an atomic Redis Lua script);
// generalized here to key off the configured Provider instead of being
// hard-coded to Gemini, since this repo's Generate dispatches over
// OpenAI/Anthropic rather than Gemini.
package llmclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces requests-per-minute, tokens-per-minute, and
// requests-per-day ceilings for one provider using Redis INCR counters with
// a per-window TTL, checked and incremented atomically via a Lua script.
type RateLimiter struct {
	redis    *redis.Client
	provider Provider
	rpmLimit int64
	tpmLimit int64
	rpdLimit int64
}

// Conservative defaults, overridable by the caller when it knows the
// provider's actual tier limits.
const (
	DefaultRPM = 500
	DefaultTPM = 500_000
	DefaultRPD = 10_000
)

// NewRateLimiter connects to Redis at addr and returns a limiter scoped to
// provider's own counter keyspace, so two providers sharing one Redis
// instance don't contend on the same keys.
func NewRateLimiter(addr string, provider Provider) (*RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &RateLimiter{
		redis:    client,
		provider: provider,
		rpmLimit: DefaultRPM,
		tpmLimit: DefaultTPM,
		rpdLimit: DefaultRPD,
	}, nil
}

// WithLimits overrides the default RPM/TPM/RPD ceilings.
func (r *RateLimiter) WithLimits(rpm, tpm, rpd int64) *RateLimiter {
	r.rpmLimit, r.tpmLimit, r.rpdLimit = rpm, tpm, rpd
	return r
}

var throttleScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local tpm_key = KEYS[2]
	local rpd_key = KEYS[3]
	local rpm_limit = tonumber(ARGV[1])
	local tpm_limit = tonumber(ARGV[2])
	local rpd_limit = tonumber(ARGV[3])
	local tokens = tonumber(ARGV[4])

	local rpm = redis.call('INCR', rpm_key)
	local tpm = redis.call('INCRBY', tpm_key, tokens)
	local rpd = redis.call('INCR', rpd_key)

	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end
	if tpm == tokens then redis.call('EXPIRE', tpm_key, 70) end
	if rpd == 1 then redis.call('EXPIRE', rpd_key, 86400) end

	if rpm >= rpm_limit * 0.9 then return {-1, 'RPM', rpm, rpm_limit} end
	if tpm >= tpm_limit * 0.9 then return {-2, 'TPM', tpm, tpm_limit} end
	if rpd >= rpd_limit then return {-3, 'RPD', rpd, rpd_limit} end

	return {0, 'OK', rpm, tpm, rpd}
`)

// CheckAndIncrement increments this minute's/day's counters and returns an
// error describing which threshold (90% of RPM/TPM, 100% of RPD) was hit,
// or nil if the call may proceed.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, estimatedTokens int64) error {
	now := time.Now()
	minuteKey := fmt.Sprintf("llmrate:%s:rpm:%s", r.provider, now.Format("2006-01-02T15:04"))
	tpmKey := fmt.Sprintf("llmrate:%s:tpm:%s", r.provider, now.Format("2006-01-02T15:04"))
	dayKey := fmt.Sprintf("llmrate:%s:rpd:%s", r.provider, now.Format("2006-01-02"))

	result, err := throttleScript.Run(ctx, r.redis,
		[]string{minuteKey, tpmKey, dayKey},
		r.rpmLimit, r.tpmLimit, r.rpdLimit, estimatedTokens).Result()
	if err != nil {
		return fmt.Errorf("rate limiter redis operation failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 2 {
		return fmt.Errorf("invalid rate limiter response format")
	}
	code := resultSlice[0].(int64)
	if code >= 0 {
		return nil
	}

	limitType := resultSlice[1].(string)
	current := resultSlice[2].(int64)
	limit := resultSlice[3].(int64)

	if code == -3 {
		tomorrow := now.Add(24 * time.Hour)
		midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
		return fmt.Errorf("daily quota exceeded: %d/%d requests (resets in %ds)", current, limit, int(midnight.Sub(now).Seconds()))
	}

	waitTime := 60 - now.Second()
	if waitTime <= 0 {
		waitTime = 1
	}
	return fmt.Errorf("approaching %s limit (%d/%d), wait %ds", limitType, current, limit, waitTime)
}

// WaitUntilAllowed blocks until CheckAndIncrement succeeds or ctx is
// cancelled, backing off for the duration named in a throttle error.
// Daily-quota exhaustion is not retried.
func (r *RateLimiter) WaitUntilAllowed(ctx context.Context, estimatedTokens int64) error {
	for {
		err := r.CheckAndIncrement(ctx, estimatedTokens)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "daily quota exceeded") {
			return err
		}

		wait := 60
		if n, ok := extractWaitSeconds(err.Error()); ok {
			wait = n
		}
		select {
		case <-time.After(time.Duration(wait) * time.Second):
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func extractWaitSeconds(msg string) (int, bool) {
	idx := strings.Index(msg, "wait ")
	if idx < 0 {
		return 0, false
	}
	rest := msg[idx+len("wait "):]
	end := strings.IndexByte(rest, 's')
	if end < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Close releases the Redis connection.
func (r *RateLimiter) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
