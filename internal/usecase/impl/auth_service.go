// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"time"

	"healthbridge/config"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// PasswordResetMessage is returned for every reset request, known email or not.
const PasswordResetMessage = "If an account with that email exists, a password reset link has been sent."

const (
	sessionIDBytes  = 32
	resetTokenBytes = 32
)

// authService implements the AuthUsecase interface.
type authService struct {
	userRepo    repository.UserRepository
	sessions    service.SessionStore
	totp        service.TOTPService
	qrCode      service.QRCodeService
	hasher      service.PasswordHasher
	policy      service.PasswordPolicy
	audit       service.AuditSink
	publisher   service.EventPublisher
	lifetime    time.Duration
	idleTimeout time.Duration
	resetTTL    time.Duration
	production  bool
	now         func() time.Time
	logger      *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	UserRepo       repository.UserRepository
	Sessions       service.SessionStore
	TOTP           service.TOTPService
	QRCode         service.QRCodeService
	Hasher         service.PasswordHasher
	PasswordPolicy service.PasswordPolicy
	Audit          service.AuditSink
	Publisher      service.EventPublisher
	Config         *config.Config
	Logger         *slog.Logger
	Clock          func() time.Time `optional:"true"`
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	srv := &authService{
		userRepo:    params.UserRepo,
		sessions:    params.Sessions,
		totp:        params.TOTP,
		qrCode:      params.QRCode,
		hasher:      params.Hasher,
		policy:      params.PasswordPolicy,
		audit:       params.Audit,
		publisher:   params.Publisher,
		lifetime:    24 * time.Hour,
		idleTimeout: 30 * time.Minute,
		resetTTL:    time.Hour,
		now:         params.Clock,
		logger:      params.Logger,
	}
	if srv.now == nil {
		srv.now = time.Now
	}

	if cfg := params.Config; cfg != nil {
		srv.production = cfg.IsProduction()
		if cfg.Session != nil {
			if cfg.Session.AbsoluteLifetime > 0 {
				srv.lifetime = cfg.Session.AbsoluteLifetime
			}
			if cfg.Session.IdleTimeout > 0 {
				srv.idleTimeout = cfg.Session.IdleTimeout
			}
		}
		if cfg.Auth != nil && cfg.Auth.ResetTokenTTL > 0 {
			srv.resetTTL = cfg.Auth.ResetTokenTTL
		}
	}

	return srv
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a patient or doctor and signs the caller straight in.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.AuthOutput, error) {
	email := entity.NormalizeEmail(input.Email)
	if !input.Role.IsSelfRegistrable() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("role must be patient or doctor")
	}
	if err := srv.policy.Validate(input.Password); err != nil {
		return nil, err
	}

	_, err := srv.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, domainerrors.ErrUserAlreadyExists.WrapMessage("email already registered")
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "failed to look up email")
	}

	hash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password", slog.Any("error", err))

		return nil, domainerrors.ErrPasswordHashFailed.WrapMessage(err.Error())
	}

	user := &entity.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         input.Role,
		IsActive:     true,
	}
	applyProfile(user, restrictProfile(input.Role, &input.Profile))

	if err := srv.userRepo.Create(ctx, user); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}

	session, err := srv.startSession(ctx, input.Client.SessionID, user, true)
	if err != nil {
		return nil, err
	}

	srv.record(ctx, &user.ID, entity.AuditActionRegister, entity.AuditResourceUsers, &user.ID, "role="+user.Role.String(), input.Client.IPAddress)
	srv.log(ctx).Info("User registered", slog.String("userID", user.ID.String()), slog.String("role", user.Role.String()))

	return &usecase.AuthOutput{User: user, Session: session}, nil
}

// Login checks the password and either completes the login or parks the
// session in the password verified state until a TOTP code arrives.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.AuthOutput, error) {
	email := entity.NormalizeEmail(input.Email)
	ip := input.Client.IPAddress

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.record(ctx, nil, entity.AuditActionLoginFailed, entity.AuditResourceUsers, nil, "email="+email, ip)

		return nil, domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}

	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.record(ctx, &user.ID, entity.AuditActionLoginFailed, entity.AuditResourceUsers, &user.ID, "reason=password", ip)

		return nil, domainerrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		srv.record(ctx, &user.ID, entity.AuditActionLoginFailed, entity.AuditResourceUsers, &user.ID, "reason=deactivated", ip)

		return nil, domainerrors.ErrAccountDeactivated
	}

	if user.TwoFactorEnabled {
		session, err := srv.startSession(ctx, input.Client.SessionID, user, false)
		if err != nil {
			return nil, err
		}
		srv.record(ctx, &user.ID, entity.AuditActionLogin2FAPending, entity.AuditResourceUsers, &user.ID, "", ip)

		return &usecase.AuthOutput{User: user, Session: session, Requires2FA: true}, nil
	}

	session, err := srv.startSession(ctx, input.Client.SessionID, user, true)
	if err != nil {
		return nil, err
	}
	srv.touchLastLogin(ctx, user)
	srv.record(ctx, &user.ID, entity.AuditActionLogin, entity.AuditResourceUsers, &user.ID, "", ip)

	return &usecase.AuthOutput{User: user, Session: session}, nil
}

// VerifyTwoFactor completes a pending login.
func (srv *authService) VerifyTwoFactor(ctx context.Context, sessionID, code, ipAddress string) (*usecase.AuthOutput, error) {
	session, err := srv.loadLive(ctx, sessionID, ipAddress)
	if err != nil {
		return nil, err
	}
	if session.State() != entity.AuthStatePasswordVerified {
		return nil, domainerrors.ErrUnauthorized.WrapMessage("no pending two-factor verification")
	}

	user, err := srv.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, srv.dropSession(ctx, sessionID, err)
	}
	if !user.IsActive || !user.TwoFactorEnabled || !user.HasTwoFactorSecret() {
		return nil, srv.dropSession(ctx, sessionID, domainerrors.ErrUnauthorized)
	}

	if !srv.totp.Validate(user.TwoFactorSecret, code, srv.now()) {
		srv.record(ctx, &user.ID, entity.AuditActionLogin2FAFailed, entity.AuditResourceUsers, &user.ID, "", ipAddress)

		return nil, domainerrors.ErrTwoFactorFailed
	}

	verified, err := srv.startSession(ctx, sessionID, user, true)
	if err != nil {
		return nil, err
	}
	srv.touchLastLogin(ctx, user)
	srv.record(ctx, &user.ID, entity.AuditActionLogin2FAVerified, entity.AuditResourceUsers, &user.ID, "", ipAddress)

	return &usecase.AuthOutput{User: user, Session: verified}, nil
}

// SetupTwoFactor stores a new secret without enabling it.
func (srv *authService) SetupTwoFactor(ctx context.Context, userID uuid.UUID) (*usecase.TwoFactorSetupOutput, error) {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domainerrors.ErrConflict.WithMessage("Two-factor authentication is already enabled.")
	}

	key, err := srv.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate totp secret")
	}
	if err := srv.userRepo.SetTwoFactorSecret(ctx, user.ID, key.Secret); err != nil {
		return nil, errors.Wrap(err, "failed to store totp secret")
	}

	qr, err := srv.qrCode.GenerateDataURL(key.URI)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render provisioning qr code")
	}

	return &usecase.TwoFactorSetupOutput{Secret: key.Secret, OTPAuthURL: key.URI, QRCode: qr}, nil
}

// EnableTwoFactor confirms the secret from SetupTwoFactor with a code.
func (srv *authService) EnableTwoFactor(ctx context.Context, userID uuid.UUID, code, ipAddress string) error {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasTwoFactorSecret() {
		return domainerrors.ErrTwoFactorNotSetup
	}
	if !srv.totp.Validate(user.TwoFactorSecret, code, srv.now()) {
		return domainerrors.ErrInvalidTwoFactorCode
	}

	if err := srv.userRepo.EnableTwoFactor(ctx, user.ID); err != nil {
		return errors.Wrap(err, "failed to enable two-factor")
	}
	srv.record(ctx, &user.ID, entity.AuditAction2FAEnabled, entity.AuditResourceUsers, &user.ID, "", ipAddress)

	return nil
}

// DisableTwoFactor clears the secret once the password is confirmed.
func (srv *authService) DisableTwoFactor(ctx context.Context, userID uuid.UUID, password, ipAddress string) error {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !srv.hasher.Check(password, user.PasswordHash) {
		return domainerrors.ErrWrongPassword
	}

	if err := srv.userRepo.DisableTwoFactor(ctx, user.ID); err != nil {
		return errors.Wrap(err, "failed to disable two-factor")
	}
	srv.record(ctx, &user.ID, entity.AuditAction2FADisabled, entity.AuditResourceUsers, &user.ID, "", ipAddress)

	return nil
}

// RequestPasswordReset answers identically whether or not email is registered.
func (srv *authService) RequestPasswordReset(ctx context.Context, email, ipAddress string) (*usecase.PasswordResetOutput, error) {
	out := &usecase.PasswordResetOutput{Message: PasswordResetMessage}

	user, err := srv.userRepo.FindByEmail(ctx, entity.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	if !user.IsActive {
		return out, nil
	}

	token, err := randomHex(resetTokenBytes)
	if err != nil {
		return nil, err
	}
	expires := srv.now().Add(srv.resetTTL).UTC()
	if err := srv.userRepo.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return nil, errors.Wrap(err, "failed to store reset token")
	}
	srv.record(ctx, &user.ID, entity.AuditActionPasswordResetRequest, entity.AuditResourceUsers, &user.ID, "", ipAddress)

	event := &service.PortalEvent{
		RequestID: deliverycontext.GetRequestIDFromContext(ctx),
		Type:      service.EventPasswordResetRequested,
		UserID:    user.ID.String(),
		Email:     user.Email,
		Name:      user.FullName(),
		Data: map[string]string{
			"token":      token,
			"expires_at": expires.Format(time.RFC3339),
		},
	}
	if err := srv.publisher.Publish(ctx, event); err != nil {
		srv.log(ctx).Error("Failed to publish password reset event", slog.String("userID", user.ID.String()), slog.Any("error", err))
	}

	if !srv.production {
		out.Token = token
	}

	return out, nil
}

// ResetPassword swaps the password for the holder of a live reset token. The
// token is spent by the same write that stores the new hash, so only one of
// two concurrent redemptions succeeds.
func (srv *authService) ResetPassword(ctx context.Context, token, newPassword, ipAddress string) error {
	if token == "" {
		return domainerrors.ErrInvalidResetToken
	}

	now := srv.now()
	user, err := srv.userRepo.FindByResetToken(ctx, token, now)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrInvalidResetToken
	}
	if err != nil {
		return errors.Wrap(err, "failed to look up reset token")
	}

	hash, err := srv.hashPassword(newPassword)
	if err != nil {
		return err
	}
	err = srv.userRepo.RedeemResetToken(ctx, user.ID, token, now, hash)
	if errors.Is(err, repository.ErrResetTokenRedeemed) {
		return domainerrors.ErrInvalidResetToken
	}
	if err != nil {
		return errors.Wrap(err, "failed to redeem reset token")
	}
	srv.record(ctx, &user.ID, entity.AuditActionPasswordReset, entity.AuditResourceUsers, &user.ID, "", ipAddress)

	return nil
}

// ChangePassword replaces the password after confirming the current one.
func (srv *authService) ChangePassword(ctx context.Context, input *usecase.ChangePasswordInput) error {
	user, err := srv.findUser(ctx, input.UserID)
	if err != nil {
		return err
	}
	if !srv.hasher.Check(input.CurrentPassword, user.PasswordHash) {
		return domainerrors.ErrWrongPassword
	}

	if err := srv.replacePassword(ctx, user.ID, input.NewPassword); err != nil {
		return err
	}
	srv.record(ctx, &user.ID, entity.AuditActionPasswordChanged, entity.AuditResourceUsers, &user.ID, "", input.IPAddress)

	return nil
}

// Logout destroys the session. Logging out without a session is a no-op.
func (srv *authService) Logout(ctx context.Context, sessionID, ipAddress string) error {
	if sessionID == "" {
		return nil
	}

	session, err := srv.sessions.Load(ctx, sessionID)
	if err != nil {
		srv.log(ctx).Warn("Failed to load session on logout", slog.Any("error", err))
	}
	if err := srv.sessions.Destroy(ctx, sessionID); err != nil {
		return errors.Wrap(err, "failed to destroy session")
	}

	if session != nil && session.UserID != uuid.Nil {
		srv.record(ctx, &session.UserID, entity.AuditActionLogout, entity.AuditResourceUsers, &session.UserID, "", ipAddress)
	}

	return nil
}

// Authenticate runs on every authenticated request.
func (srv *authService) Authenticate(ctx context.Context, sessionID, ipAddress string) (*usecase.SessionState, error) {
	session, err := srv.loadLive(ctx, sessionID, ipAddress)
	if err != nil {
		return nil, err
	}

	user, err := srv.userRepo.FindByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, srv.dropSession(ctx, sessionID, domainerrors.ErrUnauthorized)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session user")
	}
	if !user.IsActive {
		return nil, srv.dropSession(ctx, sessionID, domainerrors.ErrAccountDeactivated)
	}

	session.Touch(srv.now())
	if err := srv.sessions.Save(ctx, session, srv.remainingLifetime(session)); err != nil {
		return nil, errors.Wrap(err, "failed to refresh session")
	}

	return &usecase.SessionState{Session: session, User: user}, nil
}

// Status never fails. Storage problems read as anonymous.
func (srv *authService) Status(ctx context.Context, sessionID string) *usecase.SessionStatus {
	status := &usecase.SessionStatus{}
	if sessionID == "" {
		return status
	}

	session, err := srv.sessions.Load(ctx, sessionID)
	if err != nil {
		srv.log(ctx).Warn("Failed to load session for status", slog.Any("error", err))

		return status
	}
	now := srv.now()
	if session == nil || session.UserID == uuid.Nil || session.IsIdle(now, srv.idleTimeout) || srv.remainingLifetime(session) <= 0 {
		return status
	}

	status.Authenticated = true
	status.TwoFactorVerified = session.TwoFactorVerified
	if !session.TwoFactorVerified {
		return status
	}

	user, err := srv.userRepo.FindByID(ctx, session.UserID)
	if err != nil || !user.IsActive {
		return &usecase.SessionStatus{}
	}
	status.User = user

	return status
}

// Me returns the caller's profile.
func (srv *authService) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return srv.findUser(ctx, userID)
}

// UpdateProfile applies the fields that fit the caller's role.
func (srv *authService) UpdateProfile(ctx context.Context, userID uuid.UUID, update *entity.UserProfileUpdate, ipAddress string) (*entity.User, error) {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	update = restrictProfile(user.Role, update)
	if update.IsEmpty() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("no profile fields to update")
	}
	if update.DateOfBirth != nil && *update.DateOfBirth != "" {
		if _, err := entity.ParseAppointmentDate(*update.DateOfBirth); err != nil {
			return nil, domainerrors.ErrValidationFailed.WithDetails("date_of_birth must be YYYY-MM-DD")
		}
	}

	if err := srv.userRepo.UpdateProfile(ctx, user.ID, update); err != nil {
		return nil, errors.Wrap(err, "failed to update profile")
	}
	srv.record(ctx, &user.ID, entity.AuditActionProfileUpdated, entity.AuditResourceUsers, &user.ID, "", ipAddress)

	return srv.findUser(ctx, user.ID)
}

// loadLive loads a session and enforces the idle and absolute limits. An
// expired session is destroyed before the error is returned.
func (srv *authService) loadLive(ctx context.Context, sessionID, ipAddress string) (*entity.Session, error) {
	if sessionID == "" {
		return nil, domainerrors.ErrUnauthorized
	}

	session, err := srv.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session")
	}
	if session == nil || session.UserID == uuid.Nil {
		return nil, domainerrors.ErrUnauthorized
	}

	if session.IsIdle(srv.now(), srv.idleTimeout) || srv.remainingLifetime(session) <= 0 {
		if err := srv.sessions.Destroy(ctx, sessionID); err != nil {
			srv.log(ctx).Warn("Failed to destroy expired session", slog.Any("error", err))
		}
		srv.record(ctx, &session.UserID, entity.AuditActionSessionExpired, entity.AuditResourceUsers, &session.UserID, "", ipAddress)

		return nil, domainerrors.ErrSessionExpired
	}

	return session, nil
}

// startSession issues a fresh session id for user and destroys previousID.
func (srv *authService) startSession(ctx context.Context, previousID string, user *entity.User, verified bool) (*entity.Session, error) {
	if previousID != "" {
		if err := srv.sessions.Destroy(ctx, previousID); err != nil {
			srv.log(ctx).Warn("Failed to destroy previous session", slog.Any("error", err))
		}
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := srv.now().UTC()
	session := &entity.Session{
		ID:                id,
		UserID:            user.ID,
		Role:              user.Role,
		TwoFactorVerified: verified,
		LastActivity:      now,
		CreatedAt:         now,
	}
	if err := srv.sessions.Save(ctx, session, srv.lifetime); err != nil {
		return nil, errors.Wrap(err, "failed to save session")
	}

	return session, nil
}

func (srv *authService) remainingLifetime(session *entity.Session) time.Duration {
	return srv.lifetime - srv.now().Sub(session.CreatedAt)
}

func (srv *authService) dropSession(ctx context.Context, sessionID string, cause error) error {
	if err := srv.sessions.Destroy(ctx, sessionID); err != nil {
		srv.log(ctx).Warn("Failed to destroy session", slog.Any("error", err))
	}
	if errors.Is(cause, repository.ErrUserNotFound) {
		return domainerrors.ErrUnauthorized
	}

	return cause
}

// hashPassword enforces the password policy before hashing.
func (srv *authService) hashPassword(password string) (string, error) {
	if err := srv.policy.Validate(password); err != nil {
		return "", err
	}

	hash, err := srv.hasher.Hash(password)
	if err != nil {
		return "", domainerrors.ErrPasswordHashFailed.WrapMessage(err.Error())
	}

	return hash, nil
}

func (srv *authService) replacePassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := srv.hashPassword(password)
	if err != nil {
		return err
	}
	if err := srv.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return errors.Wrap(err, "failed to update password")
	}

	return nil
}

func (srv *authService) touchLastLogin(ctx context.Context, user *entity.User) {
	now := srv.now().UTC()
	if err := srv.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		srv.log(ctx).Warn("Failed to record last login", slog.String("userID", user.ID.String()), slog.Any("error", err))

		return
	}
	user.LastLogin = &now
}

func (srv *authService) findUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	return user, nil
}

func (srv *authService) record(ctx context.Context, userID *uuid.UUID, action entity.AuditAction, resource string, resourceID *uuid.UUID, details, ip string) {
	recordAudit(ctx, srv.audit, userID, action, resource, resourceID, details, ip)
}

func newSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate session id")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate token")
	}

	return hex.EncodeToString(buf), nil
}

// restrictProfile drops the fields that do not apply to role.
func restrictProfile(role entity.Role, update *entity.UserProfileUpdate) *entity.UserProfileUpdate {
	restricted := *update

	switch role {
	case entity.RoleDoctor:
		restricted.InsuranceID = nil
		restricted.EmergencyContact = nil
		restricted.EmergencyPhone = nil
	case entity.RolePatient:
		restricted.Specialty = nil
		restricted.LicenseNumber = nil
	case entity.RoleAdmin:
		restricted.Specialty = nil
		restricted.LicenseNumber = nil
		restricted.InsuranceID = nil
		restricted.EmergencyContact = nil
		restricted.EmergencyPhone = nil
	}

	return &restricted
}

func applyProfile(user *entity.User, update *entity.UserProfileUpdate) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&user.FirstName, update.FirstName)
	set(&user.LastName, update.LastName)
	set(&user.Phone, update.Phone)
	set(&user.DateOfBirth, update.DateOfBirth)
	set(&user.Gender, update.Gender)
	set(&user.Address, update.Address)
	set(&user.Specialty, update.Specialty)
	set(&user.LicenseNumber, update.LicenseNumber)
	set(&user.InsuranceID, update.InsuranceID)
	set(&user.EmergencyContact, update.EmergencyContact)
	set(&user.EmergencyPhone, update.EmergencyPhone)
}
