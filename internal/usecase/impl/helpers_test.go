package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"healthbridge/config"
	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/policy"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/infra/audit"
	"healthbridge/internal/infra/auth"
	"healthbridge/internal/infra/persistence/memory"
	"healthbridge/internal/infra/qrcode"
	"healthbridge/internal/infra/session"
	"healthbridge/internal/usecase"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Passw0rdA"

// monday 2025-03-10, 09:00 UTC
var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event *service.PortalEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) events(eventType service.PortalEventType) []*service.PortalEvent {
	var out []*service.PortalEvent
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		if event, ok := call.Arguments.Get(1).(*service.PortalEvent); ok && event.Type == eventType {
			out = append(out, event)
		}
	}

	return out
}

type testEnv struct {
	clock     *testClock
	cfg       *config.Config
	store     *memory.Store
	repos     repository.RepositoryFactory
	sessions  *session.MemoryStore
	publisher *mockPublisher
	audit     service.AuditSink
	policy    *policy.AccessPolicy
	hasher    service.PasswordHasher
	logger    *slog.Logger
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Session: &config.SessionConfig{
			Store:            "memory",
			AbsoluteLifetime: 24 * time.Hour,
			IdleTimeout:      30 * time.Minute,
		},
		Auth: &config.AuthConfig{
			BcryptCost:    bcrypt.MinCost,
			TOTPIssuer:    "HealthBridge",
			ResetTokenTTL: time.Hour,
		},
		PasswordStrength: &config.PasswordStrengthConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumbers:   true,
			MaxLength:        72,
		},
	}
	cfg.Env.Env = "test"

	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: testStart}
	store := memory.NewStoreWithClock(clock.Now)
	repos := store.Repositories()
	logger := newDiscardLogger()

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	cfg := newTestConfig()

	return &testEnv{
		clock:     clock,
		cfg:       cfg,
		store:     store,
		repos:     repos,
		sessions:  session.NewMemoryStoreWithClock(clock.Now),
		publisher: publisher,
		audit:     audit.NewSink(audit.Params{Repo: repos.NewAuditRepository(), Logger: logger}),
		policy:    policy.NewAccessPolicy(repos.NewAppointmentRepository()),
		hasher:    auth.NewBcryptHasher(cfg),
		logger:    logger,
	}
}

func (env *testEnv) authService() usecase.AuthUsecase {
	return NewAuthService(AuthServiceParams{
		UserRepo:       env.repos.NewUserRepository(),
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
}

func (env *testEnv) appointmentService() usecase.AppointmentUsecase {
	return NewAppointmentService(AppointmentServiceParams{
		TxManager:        env.store.TransactionManager(),
		UserRepo:         env.repos.NewUserRepository(),
		AppointmentRepo:  env.repos.NewAppointmentRepository(),
		NotificationRepo: env.repos.NewNotificationRepository(),
		Policy:           env.policy,
		Audit:            env.audit,
		Publisher:        env.publisher,
		Logger:           env.logger,
		Clock:            env.clock.Now,
	})
}

func (env *testEnv) patientService() usecase.PatientUsecase {
	return NewPatientService(PatientServiceParams{
		UserRepo:         env.repos.NewUserRepository(),
		AppointmentRepo:  env.repos.NewAppointmentRepository(),
		PrescriptionRepo: env.repos.NewPrescriptionRepository(),
		LabResultRepo:    env.repos.NewLabResultRepository(),
		NotificationRepo: env.repos.NewNotificationRepository(),
		Policy:           env.policy,
		Audit:            env.audit,
		Logger:           env.logger,
	})
}

func (env *testEnv) prescriptionService() usecase.PrescriptionUsecase {
	return NewPrescriptionService(PrescriptionServiceParams{
		UserRepo:         env.repos.NewUserRepository(),
		PrescriptionRepo: env.repos.NewPrescriptionRepository(),
		NotificationRepo: env.repos.NewNotificationRepository(),
		Policy:           env.policy,
		Audit:            env.audit,
		Logger:           env.logger,
		Clock:            env.clock.Now,
	})
}

func (env *testEnv) adminService() usecase.AdminUsecase {
	return NewAdminService(AdminServiceParams{
		UserRepo:  env.repos.NewUserRepository(),
		AuditRepo: env.repos.NewAuditRepository(),
		Audit:     env.audit,
		Logger:    env.logger,
	})
}

func (env *testEnv) notificationService() usecase.NotificationUsecase {
	return NewNotificationService(NotificationServiceParams{
		NotificationRepo: env.repos.NewNotificationRepository(),
		Logger:           env.logger,
	})
}

// seedUser stores an active user whose password is testPassword.
func (env *testEnv) seedUser(t *testing.T, role entity.Role, email string) *entity.User {
	t.Helper()

	hash, err := env.hasher.Hash(testPassword)
	require.NoError(t, err)

	user := &entity.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    string(role),
		LastName:     email,
		Role:         role,
		IsActive:     true,
	}
	if role == entity.RoleDoctor {
		user.Specialty = "Cardiology"
	}
	require.NoError(t, env.repos.NewUserRepository().Create(context.Background(), user))

	return user
}

func (env *testEnv) auditActions() []entity.AuditAction {
	entries := env.store.Entries()
	actions := make([]entity.AuditAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}

	return actions
}

func actorOf(user *entity.User) policy.Actor {
	return policy.ActorFromUser(user)
}
