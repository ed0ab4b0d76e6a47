package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore remembers the IDs of events that were applied. Safe for
// concurrent use.
type IdempotencyStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore keeps processed event IDs in process memory. It
// only deduplicates within one replica; RedisIdempotencyStore is shared.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	expiresAt map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryIdempotencyStore creates a store whose entries expire after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		expiresAt: make(map[string]time.Time),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Contains reports whether eventID was added and has not expired yet.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expiresAt[eventID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.expiresAt, eventID)
		return false, nil
	}
	return true, nil
}

// Add records eventID. Expired entries are swept at most once per ttl.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expiresAt[eventID] = now.Add(s.ttl)
	if now.Sub(s.lastSweep) >= s.ttl {
		for id, exp := range s.expiresAt {
			if !now.Before(exp) {
				delete(s.expiresAt, id)
			}
		}
		s.lastSweep = now
	}
	return nil
}

// Len returns the number of entries held, expired ones not yet swept included.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiresAt)
}

// IdempotentHandler skips events whose ID the store already holds, and
// records the ID once inner succeeds. Events without an ID and store lookup
// failures go straight to inner.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		id := event.EventID
		if id == "" {
			return inner(ctx, event)
		}

		seen, lookupErr := store.Contains(ctx, id)
		switch {
		case lookupErr != nil:
			logger.LogAttrs(ctx, slog.LevelWarn, "idempotency lookup failed",
				slog.String("event_id", id), slog.String("error", lookupErr.Error()))
		case seen:
			if info := messageInfoFrom(ctx); info.topic != "" {
				observeConsumed(info.topic, info.group, OutcomeDuplicate)
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "duplicate product event skipped",
				slog.String("event_id", id),
				slog.String("event_type", event.EventType),
				slog.String("aggregate_id", event.AggregateID))
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}
		if lookupErr != nil {
			return nil
		}
		if err := store.Add(ctx, id); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "idempotency record failed",
				slog.String("event_id", id), slog.String("error", err.Error()))
		}
		return nil
	}
}
