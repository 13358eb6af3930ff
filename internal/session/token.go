package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessTokenExpired peeks at the bearer token's exp claim without
// verifying the signature (the service owns the signing key). Opaque
// non-JWT tokens report as not expired and are sent as-is.
func accessTokenExpired(token string, now time.Time) (bool, time.Time) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false, time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, time.Time{}
	}
	return exp.Before(now), exp.Time
}
