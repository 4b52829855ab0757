package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// now is replaced in tests.
var now = time.Now

// TokenExpired reports whether token is a JWT whose exp claim has passed.
// The signature is not checked; only the backend can do that. Opaque tokens
// and JWTs without exp are never considered expired.
func TokenExpired(token string) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return now().After(exp)
}

// TokenExpiry returns the exp claim of a JWT, if it has one.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
