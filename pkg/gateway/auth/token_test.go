package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssuer_MintAndVerify(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Minute)

	token, sessionID, err := issuer.Mint()
	if err != nil {
		t.Fatal(err)
	}
	if token == "" || sessionID == "" {
		t.Fatalf("token=%q sessionID=%q", token, sessionID)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.SessionID != sessionID {
		t.Fatalf("claims session=%q want %q", claims.SessionID, sessionID)
	}
}

func TestIssuer_AcceptsBearerPrefix(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Minute)
	token, _, err := issuer.Mint()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Verify("Bearer " + token); err != nil {
		t.Fatal(err)
	}
}

func TestIssuer_RejectsWrongSecret(t *testing.T) {
	minter := NewIssuer([]byte("secret-a"), time.Minute)
	verifier := NewIssuer([]byte("secret-b"), time.Minute)

	token, _, err := minter.Mint()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.Verify(token); err != ErrInvalidToken {
		t.Fatalf("err=%v", err)
	}
}

func TestIssuer_RejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	issuer := NewIssuer(secret, time.Minute)

	claims := &SessionClaims{
		SessionID: "expired",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Verify(token); err != ErrInvalidToken {
		t.Fatalf("err=%v", err)
	}
}

func TestIssuer_RejectsGarbage(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"), time.Minute)
	for _, token := range []string{"", "   ", "Bearer ", "not.a.jwt"} {
		if _, err := issuer.Verify(token); err != ErrInvalidToken {
			t.Fatalf("token %q: err=%v", token, err)
		}
	}
}

func TestIssuer_DisabledWithoutSecret(t *testing.T) {
	if NewIssuer(nil, time.Minute).Enabled() {
		t.Fatal("nil secret reported enabled")
	}
	if NewIssuer([]byte{}, time.Minute).Enabled() {
		t.Fatal("empty secret reported enabled")
	}
	if !NewIssuer([]byte("x"), time.Minute).Enabled() {
		t.Fatal("secret reported disabled")
	}
}
