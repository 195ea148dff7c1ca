package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/infra/auth"
	"healthbridge/internal/infra/qrcode"
	"healthbridge/internal/usecase"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func login(t *testing.T, srv usecase.AuthUsecase, email, password string) *usecase.AuthOutput {
	t.Helper()

	out, err := srv.Login(context.Background(), &usecase.LoginInput{
		Email:    email,
		Password: password,
		Client:   usecase.ClientInfo{IPAddress: "10.0.0.1"},
	})
	require.NoError(t, err)

	return out
}

func TestAuthService_RegisterSignsIn(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()

	out, err := srv.Register(ctx, &usecase.RegisterInput{
		Email:     "  Jane@Example.com ",
		Password:  testPassword,
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      entity.RolePatient,
		Client:    usecase.ClientInfo{IPAddress: "10.0.0.1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", out.User.Email)
	assert.True(t, out.User.IsActive)
	assert.NotEqual(t, testPassword, out.User.PasswordHash)
	assert.False(t, out.Requires2FA)
	assert.Equal(t, entity.AuthStateFullyVerified, out.Session.State())

	stored, err := env.sessions.Load(ctx, out.Session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, out.User.ID, stored.UserID)
	assert.Contains(t, env.auditActions(), entity.AuditActionRegister)
}

func TestAuthService_RegisterRejections(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	env.seedUser(t, entity.RolePatient, "taken@example.com")

	tests := []struct {
		name  string
		input *usecase.RegisterInput
		want  error
	}{
		{
			name:  "duplicate email differs only in case",
			input: &usecase.RegisterInput{Email: "TAKEN@example.com", Password: testPassword, Role: entity.RolePatient},
			want:  domainerrors.ErrUserAlreadyExists,
		},
		{
			name:  "password without digit",
			input: &usecase.RegisterInput{Email: "new@example.com", Password: "Password", Role: entity.RolePatient},
			want:  domainerrors.ErrPasswordStrength,
		},
		{
			name:  "password too short",
			input: &usecase.RegisterInput{Email: "new@example.com", Password: "Pa1", Role: entity.RoleDoctor},
			want:  domainerrors.ErrPasswordStrength,
		},
		{
			name:  "admin cannot self register",
			input: &usecase.RegisterInput{Email: "new@example.com", Password: testPassword, Role: entity.RoleAdmin},
			want:  domainerrors.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.Register(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_LoginWithoutTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	user := env.seedUser(t, entity.RolePatient, "p@example.com")

	out := login(t, srv, "P@example.com", testPassword)

	assert.False(t, out.Requires2FA)
	assert.Equal(t, entity.AuthStateFullyVerified, out.Session.State())
	require.NotNil(t, out.User.LastLogin)
	assert.Equal(t, user.ID, out.User.ID)
	assert.Contains(t, env.auditActions(), entity.AuditActionLogin)
}

func TestAuthService_LoginFailuresAreGeneric(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	_, errWrongPassword := srv.Login(ctx, &usecase.LoginInput{Email: "p@example.com", Password: "Wrong1234"})
	_, errUnknownEmail := srv.Login(ctx, &usecase.LoginInput{Email: "nobody@example.com", Password: testPassword})

	assert.ErrorIs(t, errWrongPassword, domainerrors.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownEmail, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())

	failures := 0
	for _, action := range env.auditActions() {
		if action == entity.AuditActionLoginFailed {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestAuthService_LoginDeactivated(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	user := env.seedUser(t, entity.RolePatient, "p@example.com")
	require.NoError(t, env.repos.NewUserRepository().SetActive(ctx, user.ID, false))

	_, err := srv.Login(ctx, &usecase.LoginInput{Email: "p@example.com", Password: testPassword})
	assert.ErrorIs(t, err, domainerrors.ErrAccountDeactivated)
}

func TestAuthService_TwoFactorFlow(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	user := env.seedUser(t, entity.RoleDoctor, "doc@example.com")

	setup, err := srv.SetupTwoFactor(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/")
	assert.Contains(t, setup.QRCode, "data:image/png;base64,")

	// Setup alone does not turn two-factor on.
	out := login(t, srv, "doc@example.com", testPassword)
	assert.False(t, out.Requires2FA)

	assert.ErrorIs(t, srv.EnableTwoFactor(ctx, user.ID, "000000", "ip"), domainerrors.ErrInvalidTwoFactorCode)

	code, err := totp.GenerateCode(setup.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, srv.EnableTwoFactor(ctx, user.ID, code, "ip"))

	pending := login(t, srv, "doc@example.com", testPassword)
	require.True(t, pending.Requires2FA)
	assert.Equal(t, entity.AuthStatePasswordVerified, pending.Session.State())

	state, err := srv.Authenticate(ctx, pending.Session.ID, "ip")
	require.NoError(t, err)
	assert.False(t, state.Session.TwoFactorVerified)

	_, err = srv.VerifyTwoFactor(ctx, pending.Session.ID, "123456", "ip")
	assert.ErrorIs(t, err, domainerrors.ErrTwoFactorFailed)

	// A code from the adjacent step is still accepted.
	env.clock.Advance(20 * time.Second)
	code, err = totp.GenerateCode(setup.Secret, env.clock.Now().Add(-30*time.Second))
	require.NoError(t, err)

	verified, err := srv.VerifyTwoFactor(ctx, pending.Session.ID, code, "ip")
	require.NoError(t, err)
	assert.Equal(t, entity.AuthStateFullyVerified, verified.Session.State())
	assert.NotEqual(t, pending.Session.ID, verified.Session.ID)

	old, err := env.sessions.Load(ctx, pending.Session.ID)
	require.NoError(t, err)
	assert.Nil(t, old)

	actions := env.auditActions()
	assert.Contains(t, actions, entity.AuditAction2FAEnabled)
	assert.Contains(t, actions, entity.AuditActionLogin2FAPending)
	assert.Contains(t, actions, entity.AuditActionLogin2FAFailed)
	assert.Contains(t, actions, entity.AuditActionLogin2FAVerified)

	_, err = srv.SetupTwoFactor(ctx, user.ID)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	assert.ErrorIs(t, srv.DisableTwoFactor(ctx, user.ID, "Wrong1234", "ip"), domainerrors.ErrWrongPassword)
	require.NoError(t, srv.DisableTwoFactor(ctx, user.ID, testPassword, "ip"))
	assert.False(t, login(t, srv, "doc@example.com", testPassword).Requires2FA)
}

func TestAuthService_VerifyTwoFactorNeedsPendingSession(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	out := login(t, srv, "p@example.com", testPassword)

	_, err := srv.VerifyTwoFactor(context.Background(), out.Session.ID, "123456", "ip")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = srv.VerifyTwoFactor(context.Background(), "", "123456", "ip")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestAuthService_PasswordResetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	known, err := srv.RequestPasswordReset(ctx, "p@example.com", "ip")
	require.NoError(t, err)
	unknown, err := srv.RequestPasswordReset(ctx, "ghost@example.com", "ip")
	require.NoError(t, err)

	assert.Equal(t, known.Message, unknown.Message)
	assert.Len(t, known.Token, 64)
	assert.Empty(t, unknown.Token)

	events := env.publisher.events(service.EventPasswordResetRequested)
	require.Len(t, events, 1)
	assert.Equal(t, known.Token, events[0].Data["token"])
	assert.Equal(t, "p@example.com", events[0].Email)

	assert.ErrorIs(t, srv.ResetPassword(ctx, known.Token, "weak", "ip"), domainerrors.ErrPasswordStrength)
	require.NoError(t, srv.ResetPassword(ctx, known.Token, "NewPassw0rd", "ip"))

	login(t, srv, "p@example.com", "NewPassw0rd")
	_, err = srv.Login(ctx, &usecase.LoginInput{Email: "p@example.com", Password: testPassword})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	assert.ErrorIs(t, srv.ResetPassword(ctx, known.Token, "OtherPassw0rd", "ip"), domainerrors.ErrInvalidResetToken)
}

// lookupBarrier holds every reset token lookup until all expected callers have
// looked up, so each of them saw the token as live.
type lookupBarrier struct {
	repository.UserRepository
	arrived sync.WaitGroup
}

func (r *lookupBarrier) FindByResetToken(ctx context.Context, token string, now time.Time) (*entity.User, error) {
	user, err := r.UserRepository.FindByResetToken(ctx, token, now)
	r.arrived.Done()
	r.arrived.Wait()

	return user, err
}

func TestAuthService_ConcurrentResetRedeemsTokenOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	out, err := env.authService().RequestPasswordReset(ctx, "p@example.com", "ip")
	require.NoError(t, err)

	users := &lookupBarrier{UserRepository: env.repos.NewUserRepository()}
	users.arrived.Add(2)
	srv := NewAuthService(AuthServiceParams{
		UserRepo:       users,
		Sessions:       env.sessions,
		TOTP:           auth.NewTOTPService(env.cfg),
		QRCode:         qrcode.NewQRCodeService(256, "M"),
		Hasher:         env.hasher,
		PasswordPolicy: auth.NewPasswordPolicy(env.cfg),
		Audit:          env.audit,
		Publisher:      env.publisher,
		Config:         env.cfg,
		Logger:         env.logger,
		Clock:          env.clock.Now,
	})

	passwords := []string{"FirstPassw0rd", "SecondPassw0rd"}
	errs := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, password := range passwords {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = srv.ResetPassword(ctx, out.Token, password, "ip")
		}()
	}
	wg.Wait()

	var winner string
	var rejected int
	for i, err := range errs {
		if err == nil {
			winner = passwords[i]

			continue
		}
		assert.ErrorIs(t, err, domainerrors.ErrInvalidResetToken)
		rejected++
	}
	require.NotEmpty(t, winner)
	assert.Equal(t, 1, rejected)

	login(t, env.authService(), "p@example.com", winner)
}

func TestAuthService_PasswordResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	out, err := srv.RequestPasswordReset(ctx, "p@example.com", "ip")
	require.NoError(t, err)

	env.clock.Advance(time.Hour + time.Second)
	assert.ErrorIs(t, srv.ResetPassword(ctx, out.Token, "NewPassw0rd", "ip"), domainerrors.ErrInvalidResetToken)
}

func TestAuthService_PasswordResetHidesTokenInProduction(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Env.Env = "production"
	srv := env.authService()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	out, err := srv.RequestPasswordReset(context.Background(), "p@example.com", "ip")
	require.NoError(t, err)

	assert.Empty(t, out.Token)
	assert.Equal(t, PasswordResetMessage, out.Message)
	assert.Len(t, env.publisher.events(service.EventPasswordResetRequested), 1)
}

func TestAuthService_SessionIdleExpiry(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	out := login(t, srv, "p@example.com", testPassword)

	env.clock.Advance(29 * time.Minute)
	_, err := srv.Authenticate(ctx, out.Session.ID, "ip")
	require.NoError(t, err)

	// The previous request refreshed the activity timestamp.
	env.clock.Advance(29 * time.Minute)
	_, err = srv.Authenticate(ctx, out.Session.ID, "ip")
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)
	_, err = srv.Authenticate(ctx, out.Session.ID, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrSessionExpired)

	_, err = srv.Authenticate(ctx, out.Session.ID, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	assert.False(t, srv.Status(ctx, out.Session.ID).Authenticated)
	assert.Contains(t, env.auditActions(), entity.AuditActionSessionExpired)
}

func TestAuthService_DeactivationEndsSessions(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	user := env.seedUser(t, entity.RolePatient, "p@example.com")

	out := login(t, srv, "p@example.com", testPassword)
	require.NoError(t, env.repos.NewUserRepository().SetActive(ctx, user.ID, false))

	_, err := srv.Authenticate(ctx, out.Session.ID, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrAccountDeactivated)

	stored, err := env.sessions.Load(ctx, out.Session.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAuthService_Status(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	user := env.seedUser(t, entity.RolePatient, "p@example.com")

	assert.Equal(t, &usecase.SessionStatus{}, srv.Status(ctx, ""))
	assert.Equal(t, &usecase.SessionStatus{}, srv.Status(ctx, "missing"))

	out := login(t, srv, "p@example.com", testPassword)
	status := srv.Status(ctx, out.Session.ID)
	assert.True(t, status.Authenticated)
	assert.True(t, status.TwoFactorVerified)
	require.NotNil(t, status.User)
	assert.Equal(t, user.ID, status.User.ID)
}

func TestAuthService_LoginRotatesSession(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	env.seedUser(t, entity.RolePatient, "p@example.com")

	first := login(t, srv, "p@example.com", testPassword)
	second, err := srv.Login(ctx, &usecase.LoginInput{
		Email:    "p@example.com",
		Password: testPassword,
		Client:   usecase.ClientInfo{SessionID: first.Session.ID},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)

	stale, err := env.sessions.Load(ctx, first.Session.ID)
	require.NoError(t, err)
	assert.Nil(t, stale)
}

func TestAuthService_LogoutAndChangePassword(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	user := env.seedUser(t, entity.RolePatient, "p@example.com")

	err := srv.ChangePassword(ctx, &usecase.ChangePasswordInput{UserID: user.ID, CurrentPassword: "Wrong1234", NewPassword: "NewPassw0rd"})
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)

	require.NoError(t, srv.ChangePassword(ctx, &usecase.ChangePasswordInput{UserID: user.ID, CurrentPassword: testPassword, NewPassword: "NewPassw0rd"}))
	out := login(t, srv, "p@example.com", "NewPassw0rd")

	require.NoError(t, srv.Logout(ctx, out.Session.ID, "ip"))
	_, err = srv.Authenticate(ctx, out.Session.ID, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	require.NoError(t, srv.Logout(ctx, "", "ip"))

	actions := env.auditActions()
	assert.Contains(t, actions, entity.AuditActionPasswordChanged)
	assert.Contains(t, actions, entity.AuditActionLogout)
}

func TestAuthService_UpdateProfileKeepsRoleFields(t *testing.T) {
	env := newTestEnv(t)
	srv := env.authService()
	ctx := context.Background()
	user := env.seedUser(t, entity.RolePatient, "p@example.com")

	phone := "555-0100"
	specialty := "Surgery"
	updated, err := srv.UpdateProfile(ctx, user.ID, &entity.UserProfileUpdate{Phone: &phone, Specialty: &specialty}, "ip")
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Empty(t, updated.Specialty)

	_, err = srv.UpdateProfile(ctx, user.ID, &entity.UserProfileUpdate{Specialty: &specialty}, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	badDate := "03/10/1990"
	_, err = srv.UpdateProfile(ctx, user.ID, &entity.UserProfileUpdate{DateOfBirth: &badDate}, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}
