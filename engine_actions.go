package authtokens

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/talatkuyuk/authtokens/internal/rate"
	"github.com/talatkuyuk/authtokens/store"
	"github.com/talatkuyuk/authtokens/token"
)

// IssueActionToken describes the issueactiontoken operation and its observable behavior.
//
// IssueActionToken mints a single-use token of an action kind (password
// reset, email verification, signup verification) for subject. Issuing a new
// token of a kind invalidates any prior live token of the same kind for the
// same subject.
// IssueActionToken may return an error when input validation, dependency calls, or security checks fail.
// IssueActionToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueActionToken(ctx context.Context, subject string, kind token.Kind) (string, error) {
	if subject == "" {
		return "", ErrTokenInvalid
	}
	if !kind.Action() {
		return "", ErrNotActionKind
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckIssue(ctx, subject, uint8(kind)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricActionIssueRateLimited)
				e.emitAudit(ctx, auditEventIssueRateLimited, false, subject, "", "", ErrIssueRateLimited, func() map[string]string {
					return map[string]string{
						"kind": kind.String(),
					}
				})
				return "", ErrIssueRateLimited
			}
			e.metricInc(MetricStoreUnavailable)
			return "", ErrStoreUnavailable
		}
	}

	// One live token per subject per kind. Drop the previous one first so
	// only the newest link in the user's inbox works.
	sctx, cancel := e.storeCtx(ctx)
	err := e.store.RemoveKind(sctx, subject, kind)
	cancel()
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventStoreUnavailable, false, subject, "", "", ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"op": "remove_kind",
			}
		})
		return "", ErrStoreUnavailable
	}

	ttl := e.ttlForKind(kind)
	tokenStr, jti, expiresAt, err := e.tokens.Mint(subject, kind, "", ttl)
	if err != nil {
		return "", err
	}

	rec := &store.Record{
		JTI:       jti,
		Subject:   subject,
		Kind:      kind,
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: time.Now().Unix(),
	}

	sctx, cancel = e.storeCtx(ctx)
	err = e.store.Save(sctx, rec, ttl)
	cancel()
	if err != nil {
		mapped := mapStoreErr(err)
		if errors.Is(mapped, ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
		}
		e.emitAudit(ctx, auditEventActionTokenInvalid, false, subject, "", jti, mapped, func() map[string]string {
			return map[string]string{
				"reason": "save_failed",
				"kind":   kind.String(),
			}
		})
		return "", mapped
	}

	e.metricInc(MetricActionIssued)
	e.emitAudit(ctx, auditEventActionTokenIssued, true, subject, "", jti, nil, func() map[string]string {
		return map[string]string{
			"kind": kind.String(),
		}
	})
	return tokenStr, nil
}

// RedeemActionToken describes the redeemactiontoken operation and its observable behavior.
//
// RedeemActionToken consumes a single-use action token. The expected kind
// guards against cross-purpose redemption, a reset link can never confirm an
// email address. Exactly one of N concurrent redemptions of the same token
// succeeds; the rest fail with [ErrTokenInvalid].
// RedeemActionToken may return an error when input validation, dependency calls, or security checks fail.
// RedeemActionToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RedeemActionToken(ctx context.Context, tokenStr string, expected token.Kind) (string, error) {
	if !expected.Action() {
		return "", ErrNotActionKind
	}

	claims, err := e.tokens.Verify(tokenStr)
	if err != nil {
		mapped := mapVerifyErr(err)
		e.metricInc(MetricActionRedeemFailure)
		e.emitAudit(ctx, auditEventActionTokenInvalid, false, "", "", "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "verify_failed",
			}
		})
		return "", mapped
	}

	subject := claims.Subject()
	jti := claims.JTI()

	if claims.Kind() != expected {
		e.metricInc(MetricActionRedeemFailure)
		e.emitAudit(ctx, auditEventActionTokenInvalid, false, subject, "", jti, ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason":   "kind_mismatch",
				"kind":     claims.Kind().String(),
				"expected": expected.String(),
			}
		})
		return "", ErrTokenInvalid
	}

	sctx, cancel := e.storeCtx(ctx)
	rec, err := e.store.Redeem(sctx, jti)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			e.metricInc(MetricActionRedeemFailure)
			e.emitAudit(ctx, auditEventActionTokenReplayed, false, subject, "", jti, ErrTokenInvalid, nil)
			return "", ErrTokenInvalid
		case errors.Is(err, store.ErrExpired):
			e.metricInc(MetricActionRedeemFailure)
			e.emitAudit(ctx, auditEventActionTokenInvalid, false, subject, "", jti, ErrTokenExpired, func() map[string]string {
				return map[string]string{
					"reason": "record_expired",
				}
			})
			return "", ErrTokenExpired
		case errors.Is(err, store.ErrCorruptRecord):
			e.metricInc(MetricActionRedeemFailure)
			return "", ErrTokenInvalid
		default:
			e.metricInc(MetricStoreUnavailable)
			e.emitAudit(ctx, auditEventStoreUnavailable, false, subject, "", jti, ErrStoreUnavailable, func() map[string]string {
				return map[string]string{
					"op": "redeem",
				}
			})
			return "", ErrStoreUnavailable
		}
	}

	if rec.Subject != subject || rec.Kind != expected {
		e.metricInc(MetricActionRedeemFailure)
		e.emitAudit(ctx, auditEventActionTokenInvalid, false, subject, "", jti, ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "record_mismatch",
			}
		})
		return "", ErrTokenInvalid
	}

	// Best effort: drop any sibling tokens of the kind so a stale link
	// cannot be redeemed after this one already was. Redemption itself
	// stays valid if this cleanup fails.
	sctx, cancel = e.storeCtx(ctx)
	if err := e.store.RemoveKind(sctx, subject, expected); err != nil {
		log.Print("authtokens: action token sibling cleanup failed")
	}
	cancel()

	e.metricInc(MetricActionRedeemed)
	e.emitAudit(ctx, auditEventActionTokenRedeemed, true, subject, "", jti, nil, func() map[string]string {
		return map[string]string{
			"kind": expected.String(),
		}
	})
	return subject, nil
}
