package middleware_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"healthbridge/config"
	"healthbridge/internal/delivery/api/response"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/delivery/middleware"
	"healthbridge/internal/domain/constants"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/errors"
	"healthbridge/internal/infra/ratelimit"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(env string) *config.Config {
	cfg := &config.Config{}
	cfg.Env.Env = env
	cfg.Session = &config.SessionConfig{AbsoluteLifetime: 24 * time.Hour, IdleTimeout: 30 * time.Minute}
	cfg.RateLimit = &config.RateLimitConfig{Enabled: true, MaxAttempts: 5, Window: 15 * time.Minute}

	return cfg
}

func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.NewErrorMiddleware(discardLogger(), cfg).HandleHTTPError

	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *response.ErrorInfo {
	t.Helper()

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)

	return body.Error
}

func ok(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// fakeAuth serves Authenticate from a fixed table and panics on anything else.
type fakeAuth struct {
	usecase.AuthUsecase

	states map[string]*usecase.SessionState
	err    error
}

func (f *fakeAuth) Authenticate(_ context.Context, sessionID, _ string) (*usecase.SessionState, error) {
	if f.err != nil {
		return nil, f.err
	}
	state, found := f.states[sessionID]
	if !found {
		return nil, domainerrors.ErrUnauthorized
	}

	return state, nil
}

type recordingSink struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
}

func (s *recordingSink) Record(_ context.Context, entry *entity.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
}

func (s *recordingSink) actions() []entity.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := make([]entity.AuditAction, 0, len(s.entries))
	for _, e := range s.entries {
		actions = append(actions, e.Action)
	}

	return actions
}

func newUser(role entity.Role) *entity.User {
	return &entity.User{ID: uuid.New(), Email: string(role) + "@example.com", Role: role, IsActive: true}
}

func sessionFor(user *entity.User, verified bool) *usecase.SessionState {
	now := time.Now()

	return &usecase.SessionState{
		Session: &entity.Session{
			UserID:            user.ID,
			Role:              user.Role,
			TwoFactorVerified: verified,
			LastActivity:      now,
			CreatedAt:         now,
		},
		User: user,
	}
}

func withCookie(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: id})

	return req
}

func TestSessionMiddleware(t *testing.T) {
	cfg := testConfig(constants.EnvDevelop)
	patient := newUser(entity.RolePatient)
	auth := &fakeAuth{states: map[string]*usecase.SessionState{
		"full":    sessionFor(patient, true),
		"pending": sessionFor(patient, false),
	}}
	sessions := middleware.NewSessionMiddleware(middleware.SessionMiddlewareParams{
		AuthUC: auth,
		Cookie: middleware.NewSessionCookie(cfg),
	})

	e := newEcho(cfg)
	e.GET("/me", func(c echo.Context) error {
		user, found := deliverycontext.GetUser(c)
		require.True(t, found)

		return c.String(http.StatusOK, user.Email)
	}, sessions.RequireSession, sessions.RequireFullyVerified)
	e.GET("/status", ok, sessions.RequireSession)

	t.Run("missing cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})

	t.Run("unknown session clears cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodGet, "/me", nil), "nope"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
		assert.Negative(t, cookies[0].MaxAge)
	})

	t.Run("password verified session needs second factor", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodGet, "/me", nil), "pending"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "TWO_FACTOR_REQUIRED", decodeError(t, rec).Code)
	})

	t.Run("password verified session may use session-only routes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodGet, "/status", nil), "pending"))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("fully verified", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodGet, "/me", nil), "full"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, patient.Email, rec.Body.String())
	})
}

func TestSessionMiddleware_ExpiredSession(t *testing.T) {
	cfg := testConfig(constants.EnvDevelop)
	sessions := middleware.NewSessionMiddleware(middleware.SessionMiddlewareParams{
		AuthUC: &fakeAuth{err: domainerrors.ErrSessionExpired},
		Cookie: middleware.NewSessionCookie(cfg),
	})

	e := newEcho(cfg)
	e.GET("/me", ok, sessions.RequireSession)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodGet, "/me", nil), "idle"))

	assert.Equal(t, domainerrors.StatusSessionExpired, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", decodeError(t, rec).Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Negative(t, rec.Result().Cookies()[0].MaxAge)
}

func TestSessionCookie_Attributes(t *testing.T) {
	e := echo.New()

	t.Run("develop", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		middleware.NewSessionCookie(testConfig(constants.EnvDevelop)).Write(c, "abc")

		cookie := rec.Result().Cookies()[0]
		assert.Equal(t, "abc", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.False(t, cookie.Secure)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		assert.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
	})

	t.Run("production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		middleware.NewSessionCookie(testConfig(constants.EnvProduction)).Write(c, "abc")

		assert.True(t, rec.Result().Cookies()[0].Secure)
	})
}

func TestRoleMiddleware(t *testing.T) {
	cfg := testConfig(constants.EnvDevelop)
	sink := &recordingSink{}
	roles := middleware.NewRoleMiddleware(sink)

	e := newEcho(cfg)
	var current *entity.User
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if current != nil {
				deliverycontext.SetSession(c, sessionFor(current, true).Session, current)
			}

			return next(c)
		}
	})
	e.GET("/staff", ok, roles.RequireRole(entity.RoleDoctor, entity.RoleAdmin))

	t.Run("no user", func(t *testing.T) {
		current = nil
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/staff", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, sink.actions())
	})

	t.Run("allowed role", func(t *testing.T) {
		current = newUser(entity.RoleDoctor)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/staff", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sink.actions())
	})

	t.Run("denied role is audited", func(t *testing.T) {
		current = newUser(entity.RolePatient)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/staff", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		info := decodeError(t, rec)
		assert.Equal(t, "FORBIDDEN", info.Code)
		assert.Equal(t, "Access denied. Insufficient permissions.", info.Message)
		assert.Nil(t, info.Details)

		require.Equal(t, []entity.AuditAction{entity.AuditActionAccessDenied}, sink.actions())
		entry := sink.entries[0]
		require.NotNil(t, entry.UserID)
		assert.Equal(t, current.ID, *entry.UserID)
		assert.Contains(t, entry.Details, "patient")
		assert.Contains(t, entry.Details, "doctor, admin")
	})
}

type failingLimiter struct{}

func (failingLimiter) CheckAndRecord(context.Context, string) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestRateLimitMiddleware(t *testing.T) {
	newServer := func(cfg *config.Config, sink *recordingSink) *echo.Echo {
		limits := middleware.NewRateLimitMiddleware(middleware.RateLimitMiddlewareParams{
			Limiter: ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window),
			Audit:   sink,
			Config:  cfg,
			Logger:  discardLogger(),
		})

		e := newEcho(cfg)
		e.POST("/login", ok, limits.Limit(middleware.RateLimitScopeLogin))
		e.POST("/verify-2fa", ok, limits.Limit(middleware.RateLimitScopeTwoFactor))

		return e
	}
	post := func(e *echo.Echo, path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		return rec
	}

	t.Run("sixth attempt is rejected", func(t *testing.T) {
		sink := &recordingSink{}
		e := newServer(testConfig(constants.EnvDevelop), sink)

		for range 5 {
			assert.Equal(t, http.StatusOK, post(e, "/login", "192.0.2.10:5000").Code)
		}

		rec := post(e, "/login", "192.0.2.10:5000")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "TOO_MANY_REQUESTS", decodeError(t, rec).Code)
		assert.Equal(t, []entity.AuditAction{entity.AuditActionRateLimitHit}, sink.actions())
		assert.Equal(t, "192.0.2.10", sink.entries[0].IPAddress)
		assert.Nil(t, sink.entries[0].UserID)

		// other clients and other scopes keep their own budget
		assert.Equal(t, http.StatusOK, post(e, "/login", "192.0.2.11:5000").Code)
		assert.Equal(t, http.StatusOK, post(e, "/verify-2fa", "192.0.2.10:5000").Code)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig(constants.EnvTest)
		cfg.RateLimit.Enabled = false
		e := newServer(cfg, &recordingSink{})

		for range 10 {
			assert.Equal(t, http.StatusOK, post(e, "/login", "192.0.2.10:5000").Code)
		}
	})

	t.Run("limiter failure lets requests through", func(t *testing.T) {
		cfg := testConfig(constants.EnvDevelop)
		sink := &recordingSink{}
		limits := middleware.NewRateLimitMiddleware(middleware.RateLimitMiddlewareParams{
			Limiter: failingLimiter{},
			Audit:   sink,
			Config:  cfg,
			Logger:  discardLogger(),
		})
		e := newEcho(cfg)
		e.POST("/login", ok, limits.Limit(middleware.RateLimitScopeLogin))

		assert.Equal(t, http.StatusOK, post(e, "/login", "192.0.2.10:5000").Code)
		assert.Empty(t, sink.actions())
	})
}

func TestErrorMiddleware(t *testing.T) {
	serve := func(env string, handlerErr error) *httptest.ResponseRecorder {
		e := newEcho(testConfig(env))
		e.GET("/boom", func(echo.Context) error { return handlerErr })

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		return rec
	}

	t.Run("validation details are kept", func(t *testing.T) {
		rec := serve(constants.EnvProduction, domainerrors.ErrValidationFailed.WithDetails("email is required"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		info := decodeError(t, rec)
		assert.Equal(t, "VALIDATION_FAILED", info.Code)
		assert.Equal(t, "email is required", info.Details)
	})

	t.Run("auth failures drop details", func(t *testing.T) {
		for _, appErr := range []*domainerrors.BaseError{domainerrors.ErrForbidden, domainerrors.ErrInvalidCredentials} {
			rec := serve(constants.EnvDevelop, appErr.WithDetails("patient 42 belongs to another doctor"))

			assert.Equal(t, appErr.HTTPCode(), rec.Code)
			info := decodeError(t, rec)
			assert.Equal(t, appErr.ErrorCode(), info.Code)
			assert.Nil(t, info.Details)
			assert.NotContains(t, rec.Body.String(), "patient 42")
		}
	})

	t.Run("wrapped app error keeps its status", func(t *testing.T) {
		rec := serve(constants.EnvDevelop, errors.Wrap(domainerrors.ErrSlotUnavailable, "booking"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "SLOT_UNAVAILABLE", decodeError(t, rec).Code)
	})

	t.Run("unknown error in develop carries details", func(t *testing.T) {
		rec := serve(constants.EnvDevelop, errors.New("disk on fire"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		info := decodeError(t, rec)
		assert.Equal(t, "INTERNAL_ERROR", info.Code)
		assert.Equal(t, "disk on fire", info.Details)
	})

	t.Run("unknown error in production hides details", func(t *testing.T) {
		rec := serve(constants.EnvProduction, errors.New("disk on fire"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		info := decodeError(t, rec)
		assert.Nil(t, info.Details)
		assert.NotContains(t, rec.Body.String(), "disk on fire")
	})

	t.Run("unknown route", func(t *testing.T) {
		e := newEcho(testConfig(constants.EnvDevelop))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
	})
}
