package middleware

import (
	"net/http"
	"time"

	"healthbridge/config"
	"healthbridge/internal/domain/constants"

	"github.com/labstack/echo/v4"
)

// SessionCookie reads and writes the portal session cookie.
type SessionCookie struct {
	name   string
	secure bool
	maxAge time.Duration
}

// NewSessionCookie builds the cookie settings from the session config. The
// cookie is marked Secure in production.
func NewSessionCookie(cfg *config.Config) *SessionCookie {
	maxAge := 24 * time.Hour
	if cfg.Session != nil && cfg.Session.AbsoluteLifetime > 0 {
		maxAge = cfg.Session.AbsoluteLifetime
	}

	return &SessionCookie{
		name:   constants.SessionCookieName,
		secure: cfg.IsProduction(),
		maxAge: maxAge,
	}
}

// Read returns the session id carried by the request, or "".
func (sc *SessionCookie) Read(c echo.Context) string {
	cookie, err := c.Cookie(sc.name)
	if err != nil {
		return ""
	}

	return cookie.Value
}

// Write sets the cookie to id.
func (sc *SessionCookie) Write(c echo.Context, id string) {
	c.SetCookie(&http.Cookie{
		Name:     sc.name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sc.maxAge / time.Second),
		Expires:  time.Now().Add(sc.maxAge),
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie on the client.
func (sc *SessionCookie) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sc.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
