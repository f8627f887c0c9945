package credential

import (
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestVaultJarRoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))
	u, _ := url.Parse("http://localhost:3001/api")

	src, _ := cookiejar.New(nil)
	src.SetCookies(u, []*http.Cookie{
		{Name: AccessTokenCookie, Value: "a", Path: "/"},
		{Name: "refreshToken", Value: "r", Path: "/"},
	})
	if err := v.SaveJar(src, u); err != nil {
		t.Fatalf("SaveJar: %v", err)
	}

	dst, _ := cookiejar.New(nil)
	cookies, err := v.RestoreJar(dst, u)
	if err != nil {
		t.Fatalf("RestoreJar: %v", err)
	}
	if len(cookies) != 2 || len(dst.Cookies(u)) != 2 {
		t.Errorf("restored %d cookies, jar holds %d", len(cookies), len(dst.Cookies(u)))
	}

	if err := v.ClearCookies(); err != nil {
		t.Fatalf("ClearCookies: %v", err)
	}
	if _, err := v.RestoreJar(dst, u); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("RestoreJar after clear = %v, want ErrNoCredentials", err)
	}
	if err := v.ClearCookies(); err != nil {
		t.Errorf("second ClearCookies = %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()

	exp, ok := TokenExpiry(signed(t, now.Add(time.Hour)))
	if !ok || exp.Unix() != now.Add(time.Hour).Unix() {
		t.Errorf("TokenExpiry = %v, %v", exp, ok)
	}
	if _, ok := TokenExpiry("opaque-session-id"); ok {
		t.Error("opaque token should not report an expiry")
	}

	tests := []struct {
		name    string
		cookies []*http.Cookie
		want    bool
	}{
		{"expired", []*http.Cookie{{Name: AccessTokenCookie, Value: signed(t, now.Add(-time.Minute))}}, true},
		{"valid", []*http.Cookie{{Name: AccessTokenCookie, Value: signed(t, now.Add(time.Hour))}}, false},
		{"opaque", []*http.Cookie{{Name: AccessTokenCookie, Value: "abc"}}, false},
		{"missing", []*http.Cookie{{Name: "other", Value: "x"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccessTokenExpired(tt.cookies, now); got != tt.want {
				t.Errorf("AccessTokenExpired = %v, want %v", got, tt.want)
			}
		})
	}
}
