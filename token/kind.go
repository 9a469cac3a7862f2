package token

import "fmt"

// Kind is the closed set of token classes minted by the engine. It is a
// tagged enum rather than a free-form string so redemption paths can switch
// exhaustively over every class.
//
// Kind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Kind uint8

const (
	// KindAccess is an exported constant or variable used by the token engine.
	KindAccess Kind = iota
	// KindRefresh is an exported constant or variable used by the token engine.
	KindRefresh
	// KindResetPassword is an exported constant or variable used by the token engine.
	KindResetPassword
	// KindVerifyEmail is an exported constant or variable used by the token engine.
	KindVerifyEmail
	// KindVerifySignup is an exported constant or variable used by the token engine.
	KindVerifySignup

	kindCount
)

const (
	kindWireAccess       = "access"
	kindWireRefresh      = "refresh"
	kindWireReset        = "reset_password"
	kindWireVerifyEmail  = "verify_email"
	kindWireVerifySignup = "verify_signup"
)

// String returns the wire name of the kind, as embedded in the "knd" claim.
func (k Kind) String() string {
	switch k {
	case KindAccess:
		return kindWireAccess
	case KindRefresh:
		return kindWireRefresh
	case KindResetPassword:
		return kindWireReset
	case KindVerifyEmail:
		return kindWireVerifyEmail
	case KindVerifySignup:
		return kindWireVerifySignup
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the defined token kinds.
func (k Kind) Valid() bool {
	return k < kindCount
}

// Persisted reports whether records of this kind live in the token store.
// Access tokens are the single non-persisted kind.
func (k Kind) Persisted() bool {
	return k.Valid() && k != KindAccess
}

// Action reports whether k is a single-use action token kind.
func (k Kind) Action() bool {
	switch k {
	case KindResetPassword, KindVerifyEmail, KindVerifySignup:
		return true
	case KindAccess, KindRefresh:
		return false
	default:
		return false
	}
}

// ParseKind maps a wire name back to its [Kind].
func ParseKind(s string) (Kind, error) {
	switch s {
	case kindWireAccess:
		return KindAccess, nil
	case kindWireRefresh:
		return KindRefresh, nil
	case kindWireReset:
		return KindResetPassword, nil
	case kindWireVerifyEmail:
		return KindVerifyEmail, nil
	case kindWireVerifySignup:
		return KindVerifySignup, nil
	default:
		return 0, fmt.Errorf("unknown token kind %q", s)
	}
}
