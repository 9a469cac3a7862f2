package authtokens

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventPairMinted          = "pair_minted"
	auditEventMintFailure         = "mint_failure"
	auditEventRotateSuccess       = "rotate_success"
	auditEventRotateInvalid       = "rotate_invalid"
	auditEventRotateReuseDetected = "rotate_reuse_detected"
	auditEventRotateRateLimited   = "rotate_rate_limited"
	auditEventFamilyRevoked       = "family_revoked"
	auditEventLogoutSession       = "logout_session"
	auditEventLogoutAll           = "logout_all"
	auditEventActionTokenIssued   = "action_token_issued"
	auditEventActionTokenRedeemed = "action_token_redeemed"
	auditEventActionTokenInvalid  = "action_token_invalid"
	auditEventActionTokenReplayed = "action_token_replayed"
	auditEventIssueRateLimited    = "action_issue_rate_limited"
	auditEventUserAgentAnomaly    = "user_agent_anomaly"
	auditEventStoreUnavailable    = "store_unavailable"
)

// AuditErrorCode defines a public type used by authtokens APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrExpiredToken    AuditErrorCode = "expired_token"
	auditErrTokenReuse      AuditErrorCode = "token_reuse"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrSessionNotFound AuditErrorCode = "session_not_found"
	auditErrDuplicate       AuditErrorCode = "duplicate"
	auditErrWrongKind       AuditErrorCode = "wrong_kind"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	family string,
	jti string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Subject:   subject,
		Family:    family,
		JTI:       jti,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenReuse):
		return auditErrTokenReuse
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrRotateRateLimited),
		errors.Is(err, ErrIssueRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrDuplicateJTI):
		return auditErrDuplicate
	case errors.Is(err, ErrNotActionKind):
		return auditErrWrongKind
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
