package authtokens

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/talatkuyuk/authtokens/internal/rate"
	"github.com/talatkuyuk/authtokens/store"
	"github.com/talatkuyuk/authtokens/token"
)

// Engine defines a public type used by authtokens APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	tokens      *token.Manager
	store       store.Store
	rateLimiter *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeCtx bounds a store call by the configured operation timeout.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.Store.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.Store.OpTimeout)
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return ErrStoreUnavailable
	case errors.Is(err, store.ErrDuplicateJTI):
		return ErrDuplicateJTI
	default:
		return err
	}
}

// mapVerifyErr collapses codec failures into the public taxonomy. Expiry is
// kept distinct so callers can prompt a fresh login instead of treating the
// client as hostile.
func mapVerifyErr(err error) error {
	if errors.Is(err, token.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

// MintPair describes the mintpair operation and its observable behavior.
//
// MintPair starts a new refresh family for subject and returns the first
// access/refresh pair of that family. The userAgent is hashed and pinned on
// the stored record; pass "" to opt out of anomaly tracking.
// MintPair may return an error when input validation, dependency calls, or security checks fail.
// MintPair does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MintPair(ctx context.Context, subject, userAgent string) (*TokenPair, error) {
	if subject == "" {
		e.metricInc(MetricMintFailure)
		return nil, ErrTokenInvalid
	}

	family := uuid.NewString()
	pair, err := e.issuePair(ctx, subject, family, userAgent)
	if err != nil {
		e.metricInc(MetricMintFailure)
		e.emitAudit(ctx, auditEventMintFailure, false, subject, family, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricMintSuccess)
	e.emitAudit(ctx, auditEventPairMinted, true, subject, family, "", nil, nil)
	return pair, nil
}

// issuePair mints a refresh token bound to family plus a stateless access
// token, and persists the refresh record. The refresh record is written
// before the pair is returned so a crash cannot hand out an untracked token.
func (e *Engine) issuePair(ctx context.Context, subject, family, userAgent string) (*TokenPair, error) {
	refresh, jti, expiresAt, err := e.tokens.Mint(subject, token.KindRefresh, family, e.config.TTL.Refresh)
	if err != nil {
		return nil, err
	}
	access, _, _, err := e.tokens.Mint(subject, token.KindAccess, "", e.config.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}

	rec := &store.Record{
		JTI:           jti,
		Subject:       subject,
		Family:        family,
		Kind:          token.KindRefresh,
		ExpiresAt:     expiresAt.Unix(),
		CreatedAt:     time.Now().Unix(),
		UserAgentHash: hashUserAgent(userAgent),
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.Save(sctx, rec, e.config.TTL.Refresh); err != nil {
		return nil, mapStoreErr(err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Rotate describes the rotate operation and its observable behavior.
//
// Rotate exchanges a live refresh token for a fresh pair within the same
// family. The presented token is invalidated before the replacement is
// returned; presenting it again, or presenting any already rotated token of
// the family, revokes the whole family and fails with [ErrTokenReuse].
// Rotate may return an error when input validation, dependency calls, or security checks fail.
// Rotate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Rotate(ctx context.Context, refreshToken, userAgent string) (*TokenPair, error) {
	claims, err := e.tokens.Verify(refreshToken)
	if err != nil {
		mapped := mapVerifyErr(err)
		if errors.Is(mapped, ErrTokenExpired) {
			e.metricInc(MetricRotateExpired)
		} else {
			e.metricInc(MetricRotateFailure)
		}
		e.emitAudit(ctx, auditEventRotateInvalid, false, "", "", "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "verify_failed",
			}
		})
		return nil, mapped
	}
	if claims.Kind() != token.KindRefresh || claims.Family == "" {
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventRotateInvalid, false, claims.Subject(), claims.Family, claims.JTI(), ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "wrong_kind",
				"kind":   claims.Kind().String(),
			}
		})
		return nil, ErrTokenInvalid
	}

	subject := claims.Subject()
	family := claims.Family
	jti := claims.JTI()

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRotate(ctx, family); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRotateRateLimited)
				e.emitAudit(ctx, auditEventRotateRateLimited, false, subject, family, jti, ErrRotateRateLimited, nil)
				return nil, ErrRotateRateLimited
			}
			e.metricInc(MetricStoreUnavailable)
			e.emitAudit(ctx, auditEventStoreUnavailable, false, subject, family, jti, ErrStoreUnavailable, func() map[string]string {
				return map[string]string{
					"op": "rate_check",
				}
			})
			return nil, ErrStoreUnavailable
		}
	}

	sctx, cancel := e.storeCtx(ctx)
	rec, err := e.store.Consume(sctx, jti)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrReplayed):
			return nil, e.revokeOnReuse(ctx, subject, family, jti)
		case errors.Is(err, store.ErrExpired):
			e.metricInc(MetricRotateExpired)
			e.emitAudit(ctx, auditEventRotateInvalid, false, subject, family, jti, ErrTokenExpired, func() map[string]string {
				return map[string]string{
					"reason": "record_expired",
				}
			})
			return nil, ErrTokenExpired
		case errors.Is(err, store.ErrCorruptRecord):
			e.metricInc(MetricRotateFailure)
			e.emitAudit(ctx, auditEventRotateInvalid, false, subject, family, jti, ErrTokenInvalid, func() map[string]string {
				return map[string]string{
					"reason": "corrupt_record",
				}
			})
			return nil, ErrTokenInvalid
		default:
			e.metricInc(MetricStoreUnavailable)
			e.emitAudit(ctx, auditEventStoreUnavailable, false, subject, family, jti, ErrStoreUnavailable, func() map[string]string {
				return map[string]string{
					"op": "consume",
				}
			})
			return nil, ErrStoreUnavailable
		}
	}

	if rec.Subject != subject || rec.Family != family {
		// Signed claims and stored record disagree. Treat the token as
		// hostile and kill the stored family.
		return nil, e.revokeOnReuse(ctx, subject, rec.Family, jti)
	}

	if uaHash := hashUserAgent(userAgent); userAgent != "" && rec.UserAgentHash != ([32]byte{}) {
		if subtle.ConstantTimeCompare(uaHash[:], rec.UserAgentHash[:]) != 1 {
			e.metricInc(MetricUserAgentMismatch)
			e.emitAudit(ctx, auditEventUserAgentAnomaly, false, subject, family, jti, nil, nil)
		}
	}

	pair, err := e.issuePair(ctx, subject, family, userAgent)
	if err != nil {
		e.metricInc(MetricRotateFailure)
		if errors.Is(err, ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
		}
		e.emitAudit(ctx, auditEventRotateInvalid, false, subject, family, jti, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_pair_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricRotateSuccess)
	e.emitAudit(ctx, auditEventRotateSuccess, true, subject, family, jti, nil, nil)
	return pair, nil
}

// revokeOnReuse kills every token of family after a replayed or unknown jti
// was presented. The family must be dead before [ErrTokenReuse] is returned;
// when the revocation itself fails the caller gets [ErrStoreUnavailable] so
// a retry can re-detect the reuse.
func (e *Engine) revokeOnReuse(ctx context.Context, subject, family, jti string) error {
	sctx, cancel := e.storeCtx(ctx)
	err := e.store.RemoveFamily(sctx, family)
	cancel()
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventStoreUnavailable, false, subject, family, jti, ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"op": "revoke_family",
			}
		})
		return ErrStoreUnavailable
	}

	e.metricInc(MetricRotateReuseDetected)
	e.metricInc(MetricFamilyRevoked)
	e.emitAudit(ctx, auditEventRotateReuseDetected, false, subject, family, jti, ErrTokenReuse, nil)
	e.emitAudit(ctx, auditEventFamilyRevoked, true, subject, family, jti, nil, func() map[string]string {
		return map[string]string{
			"reason": "token_reuse",
		}
	})
	return ErrTokenReuse
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess checks an access token purely from its signature and claims.
// No store round trip happens; revoking a family does not recall access
// tokens already in flight, they simply age out.
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateAccess(tokenStr string) (*token.Claims, error) {
	claims, err := e.tokens.Verify(tokenStr)
	if err != nil {
		return nil, mapVerifyErr(err)
	}
	if claims.Kind() != token.KindAccess {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout revokes the refresh family the presented token belongs to. The
// token may already be rotated away; as long as its record is still held it
// identifies the family. Unknown tokens fail with [ErrSessionNotFound].
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	claims, err := e.tokens.Verify(refreshToken)
	if err != nil {
		return mapVerifyErr(err)
	}
	if claims.Kind() != token.KindRefresh || claims.Family == "" {
		return ErrTokenInvalid
	}

	subject := claims.Subject()
	family := claims.Family
	jti := claims.JTI()

	sctx, cancel := e.storeCtx(ctx)
	_, err = e.store.FindByJTI(sctx, jti)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.emitAudit(ctx, auditEventLogoutSession, false, subject, family, jti, ErrSessionNotFound, nil)
			return ErrSessionNotFound
		}
		e.metricInc(MetricStoreUnavailable)
		return ErrStoreUnavailable
	}

	sctx, cancel = e.storeCtx(ctx)
	err = e.store.RemoveFamily(sctx, family)
	cancel()
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventLogoutSession, false, subject, family, jti, ErrStoreUnavailable, nil)
		return ErrStoreUnavailable
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, subject, family, jti, nil, nil)
	return nil
}

// LogoutAll describes the logoutall operation and its observable behavior.
//
// LogoutAll revokes every outstanding refresh family and action token of
// subject across all devices. Idempotent.
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, subject string) error {
	if subject == "" {
		return ErrSessionNotFound
	}

	sctx, cancel := e.storeCtx(ctx)
	err := e.store.RemoveSubject(sctx, subject)
	cancel()
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventLogoutAll, false, subject, "", "", ErrStoreUnavailable, nil)
		return ErrStoreUnavailable
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, subject, "", "", nil, nil)
	return nil
}

// ttlForKind returns the configured lifetime of a persisted token kind.
func (e *Engine) ttlForKind(kind token.Kind) time.Duration {
	switch kind {
	case token.KindRefresh:
		return e.config.TTL.Refresh
	case token.KindResetPassword:
		return e.config.TTL.ResetPassword
	case token.KindVerifyEmail:
		return e.config.TTL.VerifyEmail
	case token.KindVerifySignup:
		return e.config.TTL.VerifySignup
	default:
		log.Printf("authtokens: no ttl configured for kind %s", kind)
		return 0
	}
}
