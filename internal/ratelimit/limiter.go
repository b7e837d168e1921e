package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tv-order-relay/internal/storage"
)

// IntervalLimiter enforces a minimum interval between order attempts,
// shared across all concurrent requests in the process. The in-memory
// timestamp is authoritative: Reserve performs the read-check-advance as a
// single critical section, so two near-simultaneous requests can never both
// pass a stale check. The durable checkpoint in the meta table only seeds
// the limiter across restarts and is written after each attempt.
type IntervalLimiter struct {
	mu       sync.Mutex
	last     float64
	interval time.Duration
	store    storage.CheckpointStore
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs an IntervalLimiter and loads the persisted checkpoint.
// A missing or unparseable checkpoint seeds the limiter with zero, which
// admits the first attempt immediately.
func New(ctx context.Context, interval time.Duration, store storage.CheckpointStore, logger zerolog.Logger) (*IntervalLimiter, error) {
	l := &IntervalLimiter{
		interval: interval,
		store:    store,
		logger:   logger.With().Str("component", "rate_limiter").Logger(),
		now:      time.Now,
	}

	if store != nil {
		value, found, err := store.GetCheckpoint(ctx, storage.CheckpointLastOrder)
		if err != nil {
			return nil, err
		}
		if found {
			if ts, parseErr := strconv.ParseFloat(value, 64); parseErr == nil {
				l.last = ts
			} else {
				l.logger.Warn().Str("value", value).Msg("ignoring unparseable rate-limit checkpoint")
			}
		}
	}

	return l, nil
}

// LastTimestamp returns the Unix timestamp of the most recent reserved
// attempt.
func (l *IntervalLimiter) LastTimestamp() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// MinSeconds returns the configured minimum interval in seconds.
func (l *IntervalLimiter) MinSeconds() float64 {
	return l.interval.Seconds()
}

// Reserve atomically checks the interval and, when allowed, advances the
// in-memory timestamp to now. The slot stays consumed even if the attempt
// later fails; callers follow up with Persist once the attempt completes.
func (l *IntervalLimiter) Reserve() (float64, bool) {
	now := float64(l.now().UnixNano()) / float64(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now-l.last < l.interval.Seconds() {
		return l.last, false
	}
	l.last = now
	return now, true
}

// Persist upserts the current timestamp into the durable checkpoint. It is
// called after an order attempt, successful or not.
func (l *IntervalLimiter) Persist(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	value := strconv.FormatFloat(l.LastTimestamp(), 'f', -1, 64)
	return l.store.SetCheckpoint(ctx, storage.CheckpointLastOrder, value)
}
