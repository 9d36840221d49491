package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rollcall-server/apperr"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "correct horse" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	if !hasher.Verify(hash, "correct horse") {
		t.Fatalf("expected password to verify")
	}
	if hasher.Verify(hash, "wrong") {
		t.Fatalf("wrong password verified")
	}
	if hasher.Verify("", "correct horse") {
		t.Fatalf("empty hash must never verify")
	}
	if _, err := hasher.Hash(""); err == nil {
		t.Fatalf("expected error for empty password")
	}
}

func TestTokenIssueAndParse(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tokens := NewTokenService("secret", time.Hour).WithClock(func() time.Time { return now })

	signed, expiresAt, err := tokens.Issue("teacher1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}
	subject, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if subject != "teacher1" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestTokenRejectsExpiredForeignAndGarbage(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tokens := NewTokenService("secret", time.Minute).WithClock(func() time.Time { return now })
	signed, _, err := tokens.Issue("teacher1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	later := tokens.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := later.Parse(signed); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected expired token to be unauthenticated, got %v", err)
	}

	other := NewTokenService("other-secret", time.Minute).WithClock(func() time.Time { return now })
	if _, err := other.Parse(signed); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := tokens.Parse(raw); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Fatalf("expected %q to be rejected, got %v", raw, err)
		}
	}
}

func TestMemoryThrottleLocksAndExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	throttle := NewMemoryThrottle(2, time.Minute)
	throttle.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		allowed, _ := throttle.Allow(ctx, "Teacher1")
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		_ = throttle.Fail(ctx, "teacher1 ")
	}
	if allowed, _ := throttle.Allow(ctx, "teacher1"); allowed {
		t.Fatalf("expected lockout after two failures")
	}
	if allowed, _ := throttle.Allow(ctx, "someone-else"); !allowed {
		t.Fatalf("lockout must be per username")
	}

	now = now.Add(time.Minute)
	if allowed, _ := throttle.Allow(ctx, "teacher1"); !allowed {
		t.Fatalf("expected lockout to expire")
	}

	_ = throttle.Fail(ctx, "teacher1")
	_ = throttle.Reset(ctx, "teacher1")
	_ = throttle.Fail(ctx, "teacher1")
	if allowed, _ := throttle.Allow(ctx, "teacher1"); !allowed {
		t.Fatalf("reset should clear earlier failures")
	}
}

func TestMemoryThrottleDisabled(t *testing.T) {
	throttle := NewMemoryThrottle(0, time.Minute)
	for i := 0; i < 10; i++ {
		_ = throttle.Fail(context.Background(), "x")
	}
	if allowed, _ := throttle.Allow(context.Background(), "x"); !allowed {
		t.Fatalf("zero max attempts disables throttling")
	}
}

func TestMemoryThrottleSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	throttle := NewMemoryThrottle(5, time.Minute)
	throttle.now = func() time.Time { return now }

	for i := 0; i < sweepThreshold; i++ {
		_ = throttle.Fail(ctx, fmt.Sprintf("guess-%d", i))
	}
	if got := len(throttle.entries); got != sweepThreshold {
		t.Fatalf("entries = %d, want %d", got, sweepThreshold)
	}

	now = now.Add(2 * time.Minute)
	_ = throttle.Fail(ctx, "fresh")
	if got := len(throttle.entries); got != 1 {
		t.Fatalf("entries after sweep = %d, want 1", got)
	}
}
