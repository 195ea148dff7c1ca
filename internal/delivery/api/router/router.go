// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"healthbridge/internal/delivery/api/router/handler"
	"healthbridge/internal/delivery/middleware"
	"healthbridge/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler         *handler.AuthHandler
	AppointmentHandler  *handler.AppointmentHandler
	PatientHandler      *handler.PatientHandler
	PrescriptionHandler *handler.PrescriptionHandler
	NotificationHandler *handler.NotificationHandler
	AdminHandler        *handler.AdminHandler
	SessionMiddleware   *middleware.SessionMiddleware
	RoleMiddleware      *middleware.RoleMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	auth          *handler.AuthHandler
	appointments  *handler.AppointmentHandler
	patients      *handler.PatientHandler
	prescriptions *handler.PrescriptionHandler
	notifications *handler.NotificationHandler
	admin         *handler.AdminHandler
	session       *middleware.SessionMiddleware
	roles         *middleware.RoleMiddleware
	rateLimit     *middleware.RateLimitMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		auth:          params.AuthHandler,
		appointments:  params.AppointmentHandler,
		patients:      params.PatientHandler,
		prescriptions: params.PrescriptionHandler,
		notifications: params.NotificationHandler,
		admin:         params.AdminHandler,
		session:       params.SessionMiddleware,
		roles:         params.RoleMiddleware,
		rateLimit:     params.RateLimitMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	// verified admits only sessions that completed every login step.
	verified := []echo.MiddlewareFunc{r.session.RequireSession, r.session.RequireFullyVerified}
	staff := r.roles.RequireRole(entity.RoleDoctor, entity.RoleAdmin)
	doctor := r.roles.RequireRole(entity.RoleDoctor)
	admin := r.roles.RequireRole(entity.RoleAdmin)

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.auth.Register)
		authGroup.POST("/login", r.auth.Login, r.rateLimit.Limit(middleware.RateLimitScopeLogin))
		authGroup.POST("/verify-2fa", r.auth.VerifyTwoFactor, r.rateLimit.Limit(middleware.RateLimitScopeTwoFactor))
		authGroup.POST("/forgot-password", r.auth.ForgotPassword)
		authGroup.POST("/reset-password", r.auth.ResetPassword)
		authGroup.POST("/logout", r.auth.Logout)
		authGroup.GET("/session", r.auth.Session)

		authGroup.POST("/setup-2fa", r.auth.SetupTwoFactor, verified...)
		authGroup.POST("/enable-2fa", r.auth.EnableTwoFactor, verified...)
		authGroup.POST("/disable-2fa", r.auth.DisableTwoFactor, verified...)
		authGroup.POST("/change-password", r.auth.ChangePassword, verified...)
		authGroup.GET("/me", r.auth.Me, verified...)
		authGroup.PUT("/profile", r.auth.UpdateProfile, verified...)
	}

	e.GET("/doctors", r.appointments.ListDoctors, verified...)

	appointmentsGroup := e.Group("/appointments", verified...)
	{
		appointmentsGroup.GET("/available-slots", r.appointments.AvailableSlots)
		appointmentsGroup.GET("", r.appointments.List)
		appointmentsGroup.POST("", r.appointments.Book)
		appointmentsGroup.GET("/upcoming", r.appointments.Upcoming)
		appointmentsGroup.GET("/today", r.appointments.Today, staff)
		appointmentsGroup.GET("/stats", r.appointments.Stats)
		appointmentsGroup.GET("/:id", r.appointments.Get)
		appointmentsGroup.PUT("/:id", r.appointments.Update, staff)
		appointmentsGroup.PATCH("/:id/status", r.appointments.ChangeStatus)
		appointmentsGroup.POST("/:id/cancel", r.appointments.Cancel)
		appointmentsGroup.DELETE("/:id", r.appointments.Delete, admin)
	}

	patientsGroup := e.Group("/patients", verified...)
	{
		patientsGroup.GET("", r.patients.List, staff)
		patientsGroup.GET("/:id", r.patients.Get, staff)
		patientsGroup.GET("/:id/records", r.patients.Records, staff)
		patientsGroup.GET("/:id/lab-results", r.patients.LabResults)
		patientsGroup.POST("/:id/lab-results", r.patients.AddLabResult, staff)
	}

	prescriptionsGroup := e.Group("/prescriptions", verified...)
	{
		prescriptionsGroup.GET("", r.prescriptions.List)
		prescriptionsGroup.GET("/active", r.prescriptions.Active)
		prescriptionsGroup.GET("/:id", r.prescriptions.Get)
		prescriptionsGroup.POST("", r.prescriptions.Create, doctor)
		prescriptionsGroup.PUT("/:id", r.prescriptions.Update, doctor)
		prescriptionsGroup.POST("/:id/refill", r.prescriptions.RequestRefill, r.roles.RequireRole(entity.RolePatient))
		prescriptionsGroup.DELETE("/:id", r.prescriptions.Delete, admin)
	}

	notificationsGroup := e.Group("/notifications", verified...)
	{
		notificationsGroup.GET("", r.notifications.List)
		notificationsGroup.PATCH("/read-all", r.notifications.MarkAllRead)
		notificationsGroup.PATCH("/:id/read", r.notifications.MarkRead)
	}

	adminGroup := e.Group("/admin", append(verified, admin)...)
	{
		adminGroup.GET("/users", r.admin.ListUsers)
		adminGroup.GET("/stats", r.admin.Stats)
		adminGroup.PATCH("/users/:id/toggle-active", r.admin.ToggleActive)
		adminGroup.GET("/audit-log", r.admin.AuditLog)
	}
}
