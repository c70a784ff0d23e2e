package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	token, expireAt, err := Generate(opts, "user-42")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if time.Until(expireAt) <= 0 {
		t.Fatalf("expire_at in the past: %v", expireAt)
	}

	sub, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("sub = %q", sub)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "user-42")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Fatal("token signed with another secret must not verify")
	}
}

func TestVerifyExpired(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	past := time.Now().Add(-time.Hour)
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "user-42",
		"iat": past.Unix(),
		"exp": past.Add(time.Minute).Unix(),
	})
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := Verify(opts, signed); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := Verify(DefaultOptions([]byte("secret")), "garbage.token.here"); err == nil {
		t.Fatal("garbage must not verify")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	opts.Alg = "RS256"
	if _, _, err := Generate(opts, "user-42"); err == nil {
		t.Fatal("RS256 is not in the HMAC family and must be rejected")
	}
}
