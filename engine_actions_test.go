package authtokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talatkuyuk/authtokens/token"
)

func TestIssueAndRedeemActionToken(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	reset, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword)
	if err != nil {
		t.Fatalf("IssueActionToken failed: %v", err)
	}

	subject, err := engine.RedeemActionToken(ctx, reset, token.KindResetPassword)
	if err != nil {
		t.Fatalf("RedeemActionToken failed: %v", err)
	}
	if subject != "u1" {
		t.Fatalf("expected subject u1, got %s", subject)
	}

	// Single use: the second redemption must fail.
	if _, err := engine.RedeemActionToken(ctx, reset, token.KindResetPassword); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on replay, got %v", err)
	}
}

func TestRedeemKindMismatch(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	reset, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword)
	if err != nil {
		t.Fatalf("IssueActionToken failed: %v", err)
	}

	if _, err := engine.RedeemActionToken(ctx, reset, token.KindVerifyEmail); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for kind mismatch, got %v", err)
	}

	// The mismatch attempt must not consume the token.
	if _, err := engine.RedeemActionToken(ctx, reset, token.KindResetPassword); err != nil {
		t.Fatalf("expected token to remain redeemable, got %v", err)
	}
}

func TestIssueRejectsNonActionKinds(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	for _, kind := range []token.Kind{token.KindAccess, token.KindRefresh} {
		if _, err := engine.IssueActionToken(ctx, "u1", kind); !errors.Is(err, ErrNotActionKind) {
			t.Fatalf("expected ErrNotActionKind for %s, got %v", kind, err)
		}
	}
	if _, err := engine.RedeemActionToken(ctx, "whatever", token.KindRefresh); !errors.Is(err, ErrNotActionKind) {
		t.Fatalf("expected ErrNotActionKind, got %v", err)
	}
}

func TestReissueInvalidatesPriorToken(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	first, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword)
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	second, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword)
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	if _, err := engine.RedeemActionToken(ctx, first, token.KindResetPassword); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected stale link to be dead, got %v", err)
	}
	if _, err := engine.RedeemActionToken(ctx, second, token.KindResetPassword); err != nil {
		t.Fatalf("expected newest link to work, got %v", err)
	}
}

func TestReissueDifferentKindsCoexist(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	reset, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword)
	if err != nil {
		t.Fatalf("issue reset failed: %v", err)
	}
	verify, err := engine.IssueActionToken(ctx, "u1", token.KindVerifyEmail)
	if err != nil {
		t.Fatalf("issue verify failed: %v", err)
	}

	if _, err := engine.RedeemActionToken(ctx, reset, token.KindResetPassword); err != nil {
		t.Fatalf("redeem reset failed: %v", err)
	}
	if _, err := engine.RedeemActionToken(ctx, verify, token.KindVerifyEmail); err != nil {
		t.Fatalf("redeem verify failed: %v", err)
	}
}

func TestRedeemConcurrencySingleWinner(t *testing.T) {
	engine, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	tok, err := engine.IssueActionToken(ctx, "u1", token.KindVerifySignup)
	if err != nil {
		t.Fatalf("IssueActionToken failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.RedeemActionToken(ctx, tok, token.KindVerifySignup)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrTokenInvalid):
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}

	if success != 1 {
		t.Fatalf("expected exactly one redeem success, got %d", success)
	}
}

func TestIssueRateLimited(t *testing.T) {
	cfg := engineTestConfig()
	cfg.RateLimit.EnableIssueThrottle = true
	cfg.RateLimit.MaxIssueAttempts = 2
	cfg.RateLimit.IssueCooldown = time.Minute

	engine, _, done := newTestEngine(t, cfg)
	defer done()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword); err != nil {
			t.Fatalf("issue %d failed: %v", i, err)
		}
	}

	if _, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword); !errors.Is(err, ErrIssueRateLimited) {
		t.Fatalf("expected ErrIssueRateLimited, got %v", err)
	}

	// The throttle is per subject per kind.
	if _, err := engine.IssueActionToken(ctx, "u1", token.KindVerifyEmail); err != nil {
		t.Fatalf("expected other kind to issue, got %v", err)
	}
	if _, err := engine.IssueActionToken(ctx, "u2", token.KindResetPassword); err != nil {
		t.Fatalf("expected other subject to issue, got %v", err)
	}
}

func TestRedeemExpiredActionToken(t *testing.T) {
	cfg := engineTestConfig()
	cfg.TTL.ResetPassword = 30 * time.Millisecond

	engine, _, done := newTestEngine(t, cfg)
	defer done()

	ctx := context.Background()
	reset, err := engine.IssueActionToken(ctx, "u1", token.KindResetPassword)
	if err != nil {
		t.Fatalf("IssueActionToken failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := engine.RedeemActionToken(ctx, reset, token.KindResetPassword); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
