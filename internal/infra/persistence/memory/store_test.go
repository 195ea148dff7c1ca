package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *entity.User, *entity.User) {
	t.Helper()

	store := NewStoreWithClock(func() time.Time { return fixedNow })
	users := store.Repositories().NewUserRepository()

	doctor := &entity.User{Email: "Doc@Example.com", FirstName: "Gregory", LastName: "House", Role: entity.RoleDoctor, Specialty: "Diagnostics", IsActive: true}
	patient := &entity.User{Email: "pat@example.com", FirstName: "Pat", LastName: "Smith", Role: entity.RolePatient, IsActive: true}
	require.NoError(t, users.Create(context.Background(), doctor))
	require.NoError(t, users.Create(context.Background(), patient))

	return store, doctor, patient
}

func booking(doctor, patient *entity.User, date, slot string) *entity.Appointment {
	return &entity.Appointment{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      date,
		Time:      slot,
		Duration:  entity.DefaultAppointmentDuration,
		Type:      entity.AppointmentTypeCheckup,
		Status:    entity.AppointmentStatusScheduled,
		Location:  entity.DefaultAppointmentLocation,
	}
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	store, doctor, _ := newTestStore(t)
	users := store.Repositories().NewUserRepository()
	ctx := context.Background()

	assert.Equal(t, "doc@example.com", doctor.Email)

	found, err := users.FindByEmail(ctx, " DOC@example.com ")
	require.NoError(t, err)
	assert.Equal(t, doctor.ID, found.ID)

	err = users.Create(ctx, &entity.User{Email: "doc@example.com", Role: entity.RolePatient})
	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)

	_, err = users.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_ResetTokenLifecycle(t *testing.T) {
	store, _, patient := newTestStore(t)
	users := store.Repositories().NewUserRepository()
	ctx := context.Background()

	require.NoError(t, users.SetResetToken(ctx, patient.ID, "tok", fixedNow.Add(time.Hour)))

	found, err := users.FindByResetToken(ctx, "tok", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, found.ID)

	_, err = users.FindByResetToken(ctx, "tok", fixedNow.Add(2*time.Hour))
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	purged, err := users.PurgeExpiredResetTokens(ctx, fixedNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	require.NoError(t, users.SetResetToken(ctx, patient.ID, "tok2", fixedNow.Add(time.Hour)))
	require.NoError(t, users.UpdatePassword(ctx, patient.ID, "new-hash"))
	_, err = users.FindByResetToken(ctx, "tok2", fixedNow)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_RedeemResetTokenIsSingleUse(t *testing.T) {
	store, _, patient := newTestStore(t)
	users := store.Repositories().NewUserRepository()
	ctx := context.Background()

	require.NoError(t, users.SetResetToken(ctx, patient.ID, "tok", fixedNow.Add(time.Hour)))

	err := users.RedeemResetToken(ctx, patient.ID, "tok", fixedNow.Add(2*time.Hour), "expired-hash")
	assert.ErrorIs(t, err, repository.ErrResetTokenRedeemed)

	require.NoError(t, users.RedeemResetToken(ctx, patient.ID, "tok", fixedNow, "first-hash"))
	err = users.RedeemResetToken(ctx, patient.ID, "tok", fixedNow, "second-hash")
	assert.ErrorIs(t, err, repository.ErrResetTokenRedeemed)

	stored, err := users.FindByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "first-hash", stored.PasswordHash)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestUserRepository_UpdateProfileLeavesUnsetFields(t *testing.T) {
	store, _, patient := newTestStore(t)
	users := store.Repositories().NewUserRepository()
	ctx := context.Background()

	phone := "555-0100"
	require.NoError(t, users.UpdateProfile(ctx, patient.ID, &entity.UserProfileUpdate{Phone: &phone}))

	found, err := users.FindByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", found.Phone)
	assert.Equal(t, "Pat", found.FirstName)
}

func TestUserRepository_ListPatientsForDoctor(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	repos := store.Repositories()
	ctx := context.Background()

	other := &entity.User{Email: "other@example.com", FirstName: "Olly", LastName: "Other", Role: entity.RolePatient, IsActive: true}
	require.NoError(t, repos.NewUserRepository().Create(ctx, other))
	require.NoError(t, repos.NewAppointmentRepository().Create(ctx, booking(doctor, patient, "2025-03-11", "09:00")))
	require.NoError(t, repos.NewAppointmentRepository().Create(ctx, booking(doctor, patient, "2025-03-12", "09:00")))

	mine, err := repos.NewUserRepository().ListPatientsForDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, patient.ID, mine[0].Patient.ID)
	assert.Equal(t, int64(2), mine[0].AppointmentCount)
	assert.Equal(t, "2025-03-12", mine[0].LastVisit)

	all, err := repos.NewUserRepository().ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAppointmentRepository_RejectsSecondActiveBooking(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	appointments := store.Repositories().NewAppointmentRepository()
	ctx := context.Background()

	first := booking(doctor, patient, "2025-03-11", "10:00")
	require.NoError(t, appointments.Create(ctx, first))

	err := appointments.Create(ctx, booking(doctor, patient, "2025-03-11", "10:00"))
	assert.ErrorIs(t, err, domainerrors.ErrSlotUnavailable)

	require.NoError(t, appointments.UpdateStatus(ctx, first.ID, entity.AppointmentStatusScheduled, entity.AppointmentStatusCancelled))
	require.NoError(t, appointments.Create(ctx, booking(doctor, patient, "2025-03-11", "10:00")))

	booked, err := appointments.FindBookedTimes(ctx, doctor.ID, "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, booked)
}

func TestAppointmentRepository_UpdateStatusComparesCurrentStatus(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	appointments := store.Repositories().NewAppointmentRepository()
	ctx := context.Background()

	appointment := booking(doctor, patient, "2025-03-11", "11:00")
	require.NoError(t, appointments.Create(ctx, appointment))
	require.NoError(t, appointments.UpdateStatus(ctx, appointment.ID, entity.AppointmentStatusScheduled, entity.AppointmentStatusCancelled))

	err := appointments.UpdateStatus(ctx, appointment.ID, entity.AppointmentStatusScheduled, entity.AppointmentStatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrAppointmentStatusChanged)

	stored, err := appointments.FindByID(ctx, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusCancelled, stored.Status)

	err = appointments.UpdateStatus(ctx, uuid.New(), entity.AppointmentStatusScheduled, entity.AppointmentStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrAppointmentNotFound)
}

func TestAppointmentRepository_ReadsCarryParties(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	appointments := store.Repositories().NewAppointmentRepository()
	ctx := context.Background()

	appt := booking(doctor, patient, "2025-03-11", "10:00")
	require.NoError(t, appointments.Create(ctx, appt))

	found, err := appointments.FindByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pat", found.PatientFirstName)
	assert.Equal(t, "House", found.DoctorLastName)
	assert.Equal(t, "Diagnostics", found.DoctorSpecialty)

	assigned, err := appointments.HasAssignment(ctx, doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.True(t, assigned)
}

func TestAppointmentRepository_ListingsAndStats(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	appointments := store.Repositories().NewAppointmentRepository()
	ctx := context.Background()

	past := booking(doctor, patient, "2025-03-01", "09:00")
	past.Status = entity.AppointmentStatusCompleted
	require.NoError(t, appointments.Create(ctx, past))
	require.NoError(t, appointments.Create(ctx, booking(doctor, patient, "2025-03-12", "11:00")))
	require.NoError(t, appointments.Create(ctx, booking(doctor, patient, "2025-03-11", "08:30")))

	byPatient, err := appointments.ListByPatient(ctx, patient.ID, entity.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, byPatient, 3)
	assert.Equal(t, "2025-03-12", byPatient[0].Date)

	byDoctor, err := appointments.ListByDoctor(ctx, doctor.ID, entity.AppointmentFilter{From: "2025-03-10"})
	require.NoError(t, err)
	require.Len(t, byDoctor, 2)
	assert.Equal(t, "2025-03-11", byDoctor[0].Date)

	upcoming, err := appointments.ListUpcoming(ctx, patient.ID, entity.RolePatient, "2025-03-10", 1)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "08:30", upcoming[0].Time)

	stats, err := appointments.Stats(ctx, doctor.ID, entity.RoleDoctor, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStats{Total: 3, Upcoming: 2, Completed: 1}, *stats)

	none, err := appointments.Stats(ctx, uuid.New(), entity.RolePatient, "2025-03-10")
	require.NoError(t, err)
	assert.Zero(t, none.Total)
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.TransactionManager().Execute(ctx, func(repos repository.RepositoryFactory) error {
		if err := repos.NewAppointmentRepository().Create(ctx, booking(doctor, patient, "2025-03-11", "10:00")); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	booked, err := store.Repositories().NewAppointmentRepository().FindBookedTimes(ctx, doctor.ID, "2025-03-11")
	require.NoError(t, err)
	assert.Empty(t, booked)
}

func TestTransactionManager_ConcurrentBookingsOfOneSlot(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	ctx := context.Background()

	const attempts = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.TransactionManager().Execute(ctx, func(repos repository.RepositoryFactory) error {
				appointments := repos.NewAppointmentRepository()
				booked, err := appointments.FindBookedTimes(ctx, doctor.ID, "2025-03-11")
				if err != nil {
					return err
				}
				if len(entity.FreeSlots(booked)) == len(entity.SlotGrid()) {
					return appointments.Create(ctx, booking(doctor, patient, "2025-03-11", "14:00"))
				}

				return errors.Wrap(domainerrors.ErrSlotUnavailable, "slot already booked")
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domainerrors.ErrSlotUnavailable):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(attempts-1), conflicts.Load())
}

func TestPrescriptionRepository_ConsumeRefill(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	prescriptions := store.Repositories().NewPrescriptionRepository()
	ctx := context.Background()

	p := &entity.Prescription{
		PatientID: patient.ID, DoctorID: doctor.ID, Medication: "Amoxicillin", Dosage: "500mg",
		Frequency: "twice daily", StartDate: "2025-03-10", RefillsRemaining: 1, RefillsTotal: 1,
		Status: entity.PrescriptionStatusActive,
	}
	require.NoError(t, prescriptions.Create(ctx, p))

	ok, err := prescriptions.ConsumeRefill(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = prescriptions.ConsumeRefill(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = prescriptions.ConsumeRefill(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrPrescriptionNotFound)

	found, err := prescriptions.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.RefillsRemaining)
	assert.Equal(t, "Gregory", found.DoctorFirstName)
}

func TestNotificationRepository_MarkReadScopedToOwner(t *testing.T) {
	store, doctor, patient := newTestStore(t)
	notifications := store.Repositories().NewNotificationRepository()
	ctx := context.Background()

	n := &entity.Notification{UserID: doctor.ID, Type: entity.NotificationTypeAppointment, Title: "New Appointment"}
	require.NoError(t, notifications.Create(ctx, n))

	assert.ErrorIs(t, notifications.MarkRead(ctx, n.ID, patient.ID), domainerrors.ErrNotificationNotFound)

	unread, err := notifications.CountUnread(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, notifications.MarkAllRead(ctx, doctor.ID))
	unread, err = notifications.CountUnread(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestAuditRepository_ListNewestFirst(t *testing.T) {
	store, doctor, _ := newTestStore(t)
	audit := store.Repositories().NewAuditRepository()
	ctx := context.Background()

	require.NoError(t, audit.Create(ctx, &entity.AuditEntry{UserID: &doctor.ID, Action: entity.AuditActionLogin}))
	require.NoError(t, audit.Create(ctx, &entity.AuditEntry{Action: entity.AuditActionRateLimitHit, IPAddress: "10.0.0.1"}))

	entries, err := audit.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.AuditActionRateLimitHit, entries[0].Action)
	assert.Equal(t, "doc@example.com", entries[1].UserEmail)
	assert.Len(t, store.Entries(), 2)
}
