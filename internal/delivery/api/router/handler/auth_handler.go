package handler

import (
	"log/slog"
	"net/http"

	"healthbridge/internal/delivery/api/response"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/delivery/middleware"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
	Cookie *middleware.SessionCookie
	Logger *slog.Logger
}

// AuthHandler serves the login state machine and profile endpoints.
type AuthHandler struct {
	authUC usecase.AuthUsecase
	cookie *middleware.SessionCookie
	logger *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC: params.AuthUC,
		cookie: params.Cookie,
		logger: params.Logger,
	}
}

// ProfileFields are the optional profile attributes accepted at sign-up and on
// profile updates.
type ProfileFields struct {
	Phone            *string `json:"phone" validate:"omitempty,max=30"`
	DateOfBirth      *string `json:"date_of_birth" validate:"omitempty,date"`
	Gender           *string `json:"gender" validate:"omitempty,max=30"`
	Address          *string `json:"address" validate:"omitempty,max=500"`
	Specialty        *string `json:"specialty" validate:"omitempty,max=100"`
	LicenseNumber    *string `json:"license_number" validate:"omitempty,max=50"`
	InsuranceID      *string `json:"insurance_id" validate:"omitempty,max=50"`
	EmergencyContact *string `json:"emergency_contact" validate:"omitempty,max=100"`
	EmergencyPhone   *string `json:"emergency_phone" validate:"omitempty,max=30"`
}

func (p ProfileFields) toUpdate() entity.UserProfileUpdate {
	return entity.UserProfileUpdate{
		Phone:            p.Phone,
		DateOfBirth:      p.DateOfBirth,
		Gender:           p.Gender,
		Address:          p.Address,
		Specialty:        p.Specialty,
		LicenseNumber:    p.LicenseNumber,
		InsuranceID:      p.InsuranceID,
		EmergencyContact: p.EmergencyContact,
		EmergencyPhone:   p.EmergencyPhone,
	}
}

// RegisterRequest represents the request body for sign-up
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Role      string `json:"role" validate:"required,oneof=patient doctor"`
	ProfileFields
}

// LoginRequest represents the request body for the password step
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CodeRequest carries a 6-digit authenticator code
type CodeRequest struct {
	Token string `json:"token" validate:"required,totp"`
}

// PasswordRequest carries the current password
type PasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for redeeming a reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// UpdateProfileRequest represents the request body for profile edits
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	ProfileFields
}

// LoginResponse is returned by the password step. User is a PendingUserView
// while the second factor is outstanding.
type LoginResponse struct {
	Message     string `json:"message"`
	Requires2FA bool   `json:"requires2FA"`
	User        any    `json:"user"`
}

// TwoFactorSetupResponse carries the provisioning material for an authenticator
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

// ForgotPasswordResponse is identical for known and unknown emails. ResetToken is
// only set outside production.
type ForgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

// SessionResponse describes the caller's session
type SessionResponse struct {
	Authenticated     bool      `json:"authenticated"`
	TwoFactorVerified bool      `json:"twoFactorVerified"`
	User              *UserView `json:"user,omitempty"`
}

// UserResponse wraps a single user
type UserResponse struct {
	Message string    `json:"message,omitempty"`
	User    *UserView `json:"user"`
}

func (h *AuthHandler) client(c echo.Context) usecase.ClientInfo {
	return usecase.ClientInfo{
		IPAddress: deliverycontext.GetClientIP(c),
		SessionID: h.cookie.Read(c),
	}
}

// Register creates a patient or doctor account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.Register(c.Request().Context(), &usecase.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      entity.Role(req.Role),
		Profile:   req.toUpdate(),
		Client:    h.client(c),
	})
	if err != nil {
		return err
	}

	h.cookie.Write(c, output.Session.ID)

	return response.Success(c, http.StatusCreated, UserResponse{
		Message: "Registration successful.",
		User:    newUserView(output.User),
	})
}

// Login runs the password step. Accounts with 2FA stop at a pending session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.Login(c.Request().Context(), &usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   h.client(c),
	})
	if err != nil {
		return err
	}

	h.cookie.Write(c, output.Session.ID)

	if output.Requires2FA {
		return response.Success(c, http.StatusOK, LoginResponse{
			Message:     "Please enter your 2FA code.",
			Requires2FA: true,
			User:        PendingUserView{ID: output.User.ID, Email: output.User.Email, Role: output.User.Role},
		})
	}

	return response.Success(c, http.StatusOK, LoginResponse{
		Message: "Login successful.",
		User:    newUserView(output.User),
	})
}

// VerifyTwoFactor completes a pending login with an authenticator code.
func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var req CodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sessionID := h.cookie.Read(c)
	if sessionID == "" {
		return domainerrors.ErrUnauthorized.WithMessage("Please log in first.")
	}

	output, err := h.authUC.VerifyTwoFactor(c.Request().Context(), sessionID, req.Token, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	h.cookie.Write(c, output.Session.ID)

	return response.Success(c, http.StatusOK, UserResponse{
		Message: "Login successful.",
		User:    newUserView(output.User),
	})
}

// SetupTwoFactor issues a fresh secret and its QR code.
func (h *AuthHandler) SetupTwoFactor(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	output, err := h.authUC.SetupTwoFactor(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, TwoFactorSetupResponse{
		Secret:     output.Secret,
		OTPAuthURL: output.OTPAuthURL,
		QRCode:     output.QRCode,
	})
}

// EnableTwoFactor confirms the pending secret with a code.
func (h *AuthHandler) EnableTwoFactor(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req CodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authUC.EnableTwoFactor(c.Request().Context(), actor.ID, req.Token, deliverycontext.GetClientIP(c)); err != nil {
		return err
	}

	return response.Message(c, "Two-factor authentication enabled successfully.")
}

// DisableTwoFactor turns 2FA off after re-checking the password.
func (h *AuthHandler) DisableTwoFactor(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req PasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authUC.DisableTwoFactor(c.Request().Context(), actor.ID, req.Password, deliverycontext.GetClientIP(c)); err != nil {
		return err
	}

	return response.Message(c, "Two-factor authentication disabled.")
}

// ForgotPassword starts a password reset.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.RequestPasswordReset(c.Request().Context(), req.Email, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, ForgotPasswordResponse{
		Message:    output.Message,
		ResetToken: output.Token,
	})
}

// ResetPassword redeems a reset token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authUC.ResetPassword(c.Request().Context(), req.Token, req.Password, deliverycontext.GetClientIP(c)); err != nil {
		return err
	}

	return response.Message(c, "Password reset successful. You can now log in with your new password.")
}

// ChangePassword replaces the password of the signed-in user.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.authUC.ChangePassword(c.Request().Context(), &usecase.ChangePasswordInput{
		UserID:          actor.ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		IPAddress:       deliverycontext.GetClientIP(c),
	}); err != nil {
		return err
	}

	return response.Message(c, "Password changed successfully.")
}

// Logout destroys the session and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.authUC.Logout(c.Request().Context(), h.cookie.Read(c), deliverycontext.GetClientIP(c)); err != nil {
		return err
	}

	h.cookie.Clear(c)

	return response.Message(c, "Logged out successfully.")
}

// Me returns the full profile of the signed-in user.
func (h *AuthHandler) Me(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	user, err := h.authUC.Me(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, UserResponse{User: newUserView(user)})
}

// Session reports the caller's auth state. It never fails.
func (h *AuthHandler) Session(c echo.Context) error {
	status := h.authUC.Status(c.Request().Context(), h.cookie.Read(c))

	return response.Success(c, http.StatusOK, SessionResponse{
		Authenticated:     status.Authenticated,
		TwoFactorVerified: status.TwoFactorVerified,
		User:              newUserView(status.User),
	})
}

// UpdateProfile edits the signed-in user's profile.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	update := req.toUpdate()
	update.FirstName = req.FirstName
	update.LastName = req.LastName

	user, err := h.authUC.UpdateProfile(c.Request().Context(), actor.ID, &update, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, UserResponse{
		Message: "Profile updated.",
		User:    newUserView(user),
	})
}
