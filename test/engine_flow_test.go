//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authtokens "github.com/talatkuyuk/authtokens"
	"github.com/talatkuyuk/authtokens/token"
)

func newIntegrationEngine(t *testing.T) (*authtokens.Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := authtokens.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("integration-secret")

	engine, err := authtokens.New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func TestFullSessionLifecycle(t *testing.T) {
	engine, done := newIntegrationEngine(t)
	defer done()

	ctx := context.Background()

	pair, err := engine.MintPair(ctx, "alice", "cli/1.0")
	if err != nil {
		t.Fatalf("MintPair failed: %v", err)
	}

	claims, err := engine.ValidateAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if claims.Subject() != "alice" {
		t.Fatalf("unexpected subject %s", claims.Subject())
	}

	rotated, err := engine.Rotate(ctx, pair.RefreshToken, "cli/1.0")
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	reset, err := engine.IssueActionToken(ctx, "alice", token.KindResetPassword)
	if err != nil {
		t.Fatalf("IssueActionToken failed: %v", err)
	}
	if _, err := engine.RedeemActionToken(ctx, reset, token.KindResetPassword); err != nil {
		t.Fatalf("RedeemActionToken failed: %v", err)
	}

	if err := engine.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Rotate(ctx, rotated.RefreshToken, "cli/1.0"); !errors.Is(err, authtokens.ErrTokenReuse) {
		t.Fatalf("expected dead family, got %v", err)
	}
}
