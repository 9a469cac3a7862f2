package authtokens

import "crypto/sha256"

// TokenPair is returned by [Engine.MintPair] and [Engine.Rotate]. The
// access token is a short-lived bearer credential validated statelessly;
// the refresh token is long-lived, persisted by jti, and consumed on its
// next rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// hashUserAgent produces the stored fingerprint of a client user agent.
// The plaintext is never persisted. An empty user agent hashes to the zero
// value, which disables the soft mismatch signal for that session.
func hashUserAgent(userAgent string) [32]byte {
	if userAgent == "" {
		return [32]byte{}
	}
	return sha256.Sum256([]byte(userAgent))
}
