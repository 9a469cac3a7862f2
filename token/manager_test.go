package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret-test-secret-test-secret"),
		Issuer:        "authtokens-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	m := newHSManager(t)

	signed, jti, expiresAt, err := m.Mint("u1", KindRefresh, "fam-1", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if jti == "" {
		t.Fatal("expected non-empty jti")
	}
	if until := time.Until(expiresAt); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry distance: %v", until)
	}

	claims, err := m.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject() != "u1" {
		t.Fatalf("subject = %q", claims.Subject())
	}
	if claims.JTI() != jti {
		t.Fatalf("jti mismatch: %q vs %q", claims.JTI(), jti)
	}
	if claims.Kind() != KindRefresh {
		t.Fatalf("kind = %v", claims.Kind())
	}
	if claims.Family != "fam-1" {
		t.Fatalf("family = %q", claims.Family)
	}
}

func TestMintUniqueJTI(t *testing.T) {
	m := newHSManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		_, jti, _, err := m.Mint("u1", KindRefresh, "fam-1", time.Hour)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if seen[jti] {
			t.Fatalf("jti %q minted twice", jti)
		}
		seen[jti] = true
	}
}

func TestMintRejectsBadInputs(t *testing.T) {
	m := newHSManager(t)

	cases := []struct {
		name    string
		subject string
		kind    Kind
		family  string
		ttl     time.Duration
	}{
		{"empty subject", "", KindRefresh, "f", time.Hour},
		{"zero ttl", "u1", KindRefresh, "f", 0},
		{"refresh without family", "u1", KindRefresh, "", time.Hour},
		{"access with family", "u1", KindAccess, "f", time.Hour},
		{"action with family", "u1", KindResetPassword, "f", time.Hour},
		{"unknown kind", "u1", Kind(42), "", time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, _, err := m.Mint(tc.subject, tc.kind, tc.family, tc.ttl); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	m := newHSManager(t)

	signed, _, _, err := m.Mint("u1", KindRefresh, "fam-1", time.Millisecond)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := m.Verify(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	m := newHSManager(t)

	signed, _, _, err := m.Mint("u1", KindVerifyEmail, "", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	tampered := signed[:len(signed)-2] + "xx"
	if _, err := m.Verify(tampered); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	m := newHSManager(t)

	for _, input := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := m.Verify(input); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("input %q: expected ErrTokenMalformed, got %v", input, err)
		}
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{
		KindName: KindAccess.String(),
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			ID:        "j1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(signed); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestVerifyRejectsKindShapeMismatch(t *testing.T) {
	m := newHSManager(t)

	sign := func(c Claims) string {
		t.Helper()
		tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, c)
		signed, err := tok.SignedString([]byte("test-secret-test-secret-test-secret"))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return signed
	}

	base := gjwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "j1",
		Issuer:    "authtokens-test",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}

	cases := []struct {
		name   string
		claims Claims
	}{
		{"unknown kind name", Claims{KindName: "bogus", RegisteredClaims: base}},
		{"refresh missing family", Claims{KindName: KindRefresh.String(), RegisteredClaims: base}},
		{"reset carrying family", Claims{KindName: KindResetPassword.String(), Family: "f", RegisteredClaims: base}},
		{"missing jti", Claims{KindName: KindAccess.String(), RegisteredClaims: gjwt.RegisteredClaims{Subject: "u1", Issuer: "authtokens-test", ExpiresAt: base.ExpiresAt}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Verify(sign(tc.claims)); !errors.Is(err, ErrTokenMalformed) {
				t.Fatalf("expected ErrTokenMalformed, got %v", err)
			}
		})
	}
}

func TestVerifyIssuerMismatch(t *testing.T) {
	m := newHSManager(t)
	other, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret-test-secret-test-secret"),
		Issuer:        "someone-else",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	signed, _, _, err := other.Mint("u1", KindRefresh, "fam-1", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := m.Verify(signed); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestKindEnum(t *testing.T) {
	for _, k := range []Kind{KindAccess, KindRefresh, KindResetPassword, KindVerifyEmail, KindVerifySignup} {
		parsed, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("parse kind %v: %v", k, err)
		}
		if parsed != k {
			t.Fatalf("round trip %v -> %v", k, parsed)
		}
	}

	if _, err := ParseKind("nope"); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
	if KindAccess.Persisted() {
		t.Fatal("access tokens must not be persisted")
	}
	if !KindRefresh.Persisted() || !KindResetPassword.Persisted() {
		t.Fatal("refresh and action tokens must be persisted")
	}
	if KindRefresh.Action() || !KindVerifySignup.Action() {
		t.Fatal("action classification wrong")
	}
}
