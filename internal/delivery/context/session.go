package context

import (
	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/policy"

	"github.com/labstack/echo/v4"
)

const (
	// KeySession is the key for the authenticated session in echo.Context.
	KeySession ContextKey = "session"

	// KeyUser is the key for the user behind the session in echo.Context.
	KeyUser ContextKey = "user"
)

// SetSession stores the validated session and its user in echo.Context.
func SetSession(c echo.Context, session *entity.Session, user *entity.User) {
	c.Set(string(KeySession), session)
	c.Set(string(KeyUser), user)
}

// GetSession returns the validated session, or nil when the request is anonymous.
func GetSession(c echo.Context) *entity.Session {
	session, _ := c.Get(string(KeySession)).(*entity.Session)

	return session
}

// GetUser returns the user behind the session.
func GetUser(c echo.Context) (*entity.User, bool) {
	user, ok := c.Get(string(KeyUser)).(*entity.User)

	return user, ok && user != nil
}

// GetActor returns the access-policy identity of the session user.
func GetActor(c echo.Context) (policy.Actor, bool) {
	user, ok := GetUser(c)
	if !ok {
		return policy.Actor{}, false
	}

	return policy.ActorFromUser(user), true
}

// GetClientIP returns the caller address used for audit entries and rate limiting.
func GetClientIP(c echo.Context) string {
	return c.RealIP()
}
