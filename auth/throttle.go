package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Throttle tracks failed logins per username and locks a username out once
// the limit is reached.
type Throttle interface {
	Allow(ctx context.Context, username string) (bool, error)
	Fail(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// ThrottleKey normalizes a username so "Admin" and "admin " share a counter.
func ThrottleKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// sweepThreshold is the map size at which Fail purges expired entries.
const sweepThreshold = 1024

// MemoryThrottle is the single-process Throttle used when no Redis is configured.
type MemoryThrottle struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*attempts
}

type attempts struct {
	count   int
	expires time.Time
}

func NewMemoryThrottle(maxAttempts int, window time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		entries:     make(map[string]*attempts),
	}
}

func (t *MemoryThrottle) Allow(_ context.Context, username string) (bool, error) {
	if t.maxAttempts <= 0 {
		return true, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.live(ThrottleKey(username))
	return entry == nil || entry.count < t.maxAttempts, nil
}

func (t *MemoryThrottle) Fail(_ context.Context, username string) error {
	if t.maxAttempts <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	key := ThrottleKey(username)
	entry := t.live(key)
	if entry == nil {
		if len(t.entries) >= sweepThreshold {
			t.sweep()
		}
		entry = &attempts{expires: t.now().Add(t.window)}
		t.entries[key] = entry
	}
	entry.count++
	return nil
}

func (t *MemoryThrottle) Reset(_ context.Context, username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, ThrottleKey(username))
	return nil
}

// sweep drops every entry whose window has passed.
func (t *MemoryThrottle) sweep() {
	now := t.now()
	for key, entry := range t.entries {
		if !now.Before(entry.expires) {
			delete(t.entries, key)
		}
	}
}

// live returns the entry for key, dropping it first if its window has passed.
func (t *MemoryThrottle) live(key string) *attempts {
	entry, ok := t.entries[key]
	if !ok {
		return nil
	}
	if !t.now().Before(entry.expires) {
		delete(t.entries, key)
		return nil
	}
	return entry
}
