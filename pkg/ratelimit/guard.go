package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for rate limit gating.
var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "affiliate_rate_limit_blocks_total",
		Help: "Total number of marketplace calls blocked by an active cooldown",
	})

	rateLimitTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "affiliate_rate_limit_trips_total",
		Help: "Total number of cooldowns started after remote rate limiting",
	})

	rateLimitCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "affiliate_rate_limit_cooldown_seconds",
		Help: "Duration of the most recent rate limit cooldown",
	})
)

// Config holds the guard configuration.
type Config struct {
	// InitialCooldown is the window started by the first trip.
	// Defaults to DefaultInitialCooldown.
	InitialCooldown time.Duration

	// MaxCooldown caps the exponential growth. Defaults to DefaultMaxCooldown.
	MaxCooldown time.Duration

	// Redis mirrors the active window across replicas when set. The mirror
	// is best effort: Redis faults degrade to process-local state, never
	// block a call by themselves.
	Redis *redis.Client
}

// Guard gates outbound marketplace calls during rate-limit cooldowns.
// Consecutive trips double the cooldown up to MaxCooldown; a successful
// call resets it.
type Guard struct {
	mu    sync.Mutex
	state CooldownState

	initial time.Duration
	max     time.Duration
	redis   *redis.Client
	logger  zerolog.Logger
}

// NewGuard creates a new cooldown guard.
func NewGuard(cfg Config) *Guard {
	if cfg.InitialCooldown <= 0 {
		cfg.InitialCooldown = DefaultInitialCooldown
	}
	if cfg.MaxCooldown < cfg.InitialCooldown {
		cfg.MaxCooldown = DefaultMaxCooldown
	}

	return &Guard{
		initial: cfg.InitialCooldown,
		max:     cfg.MaxCooldown,
		redis:   cfg.Redis,
		logger:  log.With().Str("component", "rate-limit-guard").Logger(),
	}
}

// Allow reports whether an outbound call may proceed. When blocked, the
// second return value is the time until the cooldown window closes.
func (g *Guard) Allow(ctx context.Context) (bool, time.Duration) {
	now := time.Now()

	g.mu.Lock()
	state := g.state
	g.mu.Unlock()

	if state.Active(now) {
		remaining := state.Remaining(now)
		rateLimitBlocksTotal.Inc()
		g.logger.Warn().
			Dur("remaining", remaining).
			Int("consecutive", state.Consecutive).
			Msg("Marketplace call blocked by cooldown")
		return false, remaining
	}

	// Local state is clear; adopt a cooldown another replica may have
	// started.
	if g.redis != nil {
		if shared, ok := g.sharedState(ctx); ok && shared.Active(now) {
			g.mu.Lock()
			if shared.Until.After(g.state.Until) {
				g.state = shared
			}
			g.mu.Unlock()

			remaining := shared.Remaining(now)
			rateLimitBlocksTotal.Inc()
			g.logger.Warn().
				Dur("remaining", remaining).
				Msg("Marketplace call blocked by shared cooldown")
			return false, remaining
		}
	}

	return true, 0
}

// Trip starts (or extends) a cooldown after the remote rate-limited us and
// returns the new window's duration.
func (g *Guard) Trip(ctx context.Context) time.Duration {
	now := time.Now()

	g.mu.Lock()
	g.state.Consecutive++
	cooldown := g.cooldownFor(g.state.Consecutive)
	g.state.TrippedAt = now
	g.state.Until = now.Add(cooldown)
	state := g.state
	g.mu.Unlock()

	rateLimitTripsTotal.Inc()
	rateLimitCooldownSeconds.Set(cooldown.Seconds())
	g.logger.Warn().
		Dur("cooldown", cooldown).
		Int("consecutive", state.Consecutive).
		Msg("Rate limit cooldown started")

	if g.redis != nil {
		payload, err := json.Marshal(state)
		if err == nil {
			// TTL equals the window so stale mirrors expire on their own.
			if err := g.redis.Set(ctx, RedisKeyCooldown, payload, cooldown).Err(); err != nil {
				g.logger.Debug().Err(err).Msg("Failed to mirror cooldown to redis")
			}
		}
	}

	return cooldown
}

// Reset clears the cooldown after a successful marketplace call.
func (g *Guard) Reset(ctx context.Context) {
	g.mu.Lock()
	wasTripped := g.state.Consecutive != 0 || !g.state.Until.IsZero()
	g.state = CooldownState{}
	g.mu.Unlock()

	if !wasTripped {
		return
	}

	rateLimitCooldownSeconds.Set(0)
	g.logger.Info().Msg("Rate limit cooldown cleared after successful call")

	if g.redis != nil {
		if err := g.redis.Del(ctx, RedisKeyCooldown).Err(); err != nil {
			g.logger.Debug().Err(err).Msg("Failed to clear shared cooldown")
		}
	}
}

// State returns a copy of the current cooldown state.
func (g *Guard) State() CooldownState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// cooldownFor computes the window for the n-th consecutive trip.
func (g *Guard) cooldownFor(consecutive int) time.Duration {
	cooldown := g.initial
	for i := 1; i < consecutive; i++ {
		cooldown *= 2
		if cooldown >= g.max {
			return g.max
		}
	}
	if cooldown > g.max {
		cooldown = g.max
	}
	return cooldown
}

// sharedState reads the mirrored cooldown window from Redis.
func (g *Guard) sharedState(ctx context.Context) (CooldownState, bool) {
	payload, err := g.redis.Get(ctx, RedisKeyCooldown).Bytes()
	if err != nil {
		if err != redis.Nil {
			g.logger.Debug().Err(err).Msg("Failed to read shared cooldown")
		}
		return CooldownState{}, false
	}

	var state CooldownState
	if err := json.Unmarshal(payload, &state); err != nil {
		g.logger.Debug().Err(err).Msg("Malformed shared cooldown payload")
		return CooldownState{}, false
	}
	return state, true
}
