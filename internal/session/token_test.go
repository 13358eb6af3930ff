package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAccessTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	if ok, at := accessTokenExpired(expired, now); !ok {
		t.Fatal("token past exp should report expired")
	} else if !at.Equal(now.Add(-time.Hour)) {
		t.Fatalf("exp = %v, want %v", at, now.Add(-time.Hour))
	}

	fresh := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	if ok, _ := accessTokenExpired(fresh, now); ok {
		t.Fatal("token before exp should not report expired")
	}
}

func TestAccessTokenExpiredToleratesOpaqueTokens(t *testing.T) {
	now := time.Now()
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if ok, _ := accessTokenExpired(token, now); ok {
			t.Fatalf("opaque token %q reported expired", token)
		}
	}
	noExp := signedToken(t, jwt.MapClaims{"sub": "u1"})
	if ok, _ := accessTokenExpired(noExp, now); ok {
		t.Fatal("token without exp reported expired")
	}
}
