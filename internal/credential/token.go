package credential

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenCookie is the cookie carrying the short-lived access token.
const AccessTokenCookie = "accessToken"

// TokenExpiry reads the exp claim of a JWT without verifying its
// signature. The client cannot verify it and only uses the claim to
// decide whether to refresh before reconnecting.
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

// AccessTokenExpired reports whether the access token among cookies is
// a JWT whose exp has passed at now. Unknown or opaque tokens report
// false.
func AccessTokenExpired(cookies []*http.Cookie, now time.Time) bool {
	for _, c := range cookies {
		if c.Name != AccessTokenCookie {
			continue
		}
		exp, ok := TokenExpiry(c.Value)
		return ok && !exp.After(now)
	}
	return false
}
