// Package session moves the session token between the server and the client
// in an HttpOnly cookie.
package session

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// CookieName is the name of the cookie carrying the session token.
const CookieName = "token"

// Transport reads, writes and clears the session cookie.
type Transport struct {
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewTransport returns a Transport whose cookies live for ttl. Secure should
// be true in production only, so local HTTP development keeps working.
func NewTransport(ttl time.Duration, secure bool) *Transport {
	return &Transport{ttl: ttl, secure: secure, now: time.Now}
}

// Read returns the raw token from the request cookie, if present and non-empty.
func (t *Transport) Read(c echo.Context) (string, bool) {
	ck, err := c.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Write sets the session cookie to token.
func (t *Transport) Write(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(t.ttl / time.Second),
		Expires:  t.now().Add(t.ttl),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear instructs the client to drop the session cookie.
func (t *Transport) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
