package impl

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookingDate = "2025-03-12"

func bookAt(t *testing.T, srv usecase.AppointmentUsecase, patient, doctor *entity.User, slot string) *entity.Appointment {
	t.Helper()

	appointment, err := srv.Book(context.Background(), actorOf(patient), &usecase.BookAppointmentInput{
		DoctorID: doctor.ID,
		Date:     bookingDate,
		Time:     slot,
		Reason:   "annual checkup",
	})
	require.NoError(t, err)

	return appointment
}

func TestAppointmentService_SlotsFollowBookings(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")

	slots, err := srv.AvailableSlots(ctx, doctor.ID, bookingDate)
	require.NoError(t, err)
	require.Len(t, slots, 18)
	assert.Equal(t, "08:00", slots[0])
	assert.Equal(t, "16:30", slots[17])

	appointment := bookAt(t, srv, patient, doctor, "09:00")

	slots, err = srv.AvailableSlots(ctx, doctor.ID, bookingDate)
	require.NoError(t, err)
	assert.Len(t, slots, 17)
	assert.NotContains(t, slots, "09:00")
	assert.Contains(t, slots, "09:30")

	_, err = srv.Cancel(ctx, actorOf(patient), appointment.ID, "ip")
	require.NoError(t, err)

	slots, err = srv.AvailableSlots(ctx, doctor.ID, bookingDate)
	require.NoError(t, err)
	assert.Len(t, slots, 18)
	assert.Contains(t, slots, "09:00")

	bookAt(t, srv, patient, doctor, "09:00")
}

func TestAppointmentService_BookSideEffects(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")

	appointment := bookAt(t, srv, patient, doctor, "10:30")

	assert.Equal(t, entity.AppointmentStatusScheduled, appointment.Status)
	assert.Equal(t, entity.AppointmentTypeCheckup, appointment.Type)
	assert.Equal(t, entity.DefaultAppointmentDuration, appointment.Duration)
	assert.Equal(t, entity.DefaultAppointmentLocation, appointment.Location)
	assert.Equal(t, patient.FirstName, appointment.PatientFirstName)
	assert.Equal(t, doctor.LastName, appointment.DoctorLastName)

	notifications, err := env.repos.NewNotificationRepository().ListByUser(ctx, doctor.ID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, entity.NotificationTypeAppointment, notifications[0].Type)

	assert.Equal(t, []entity.AuditAction{entity.AuditActionCreateAppointment}, env.auditActions())

	events := env.publisher.events(service.EventAppointmentBooked)
	require.Len(t, events, 1)
	assert.Equal(t, patient.Email, events[0].Email)
	assert.Equal(t, "10:30", events[0].Data["time"])
}

func TestAppointmentService_BookRejections(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	admin := env.seedUser(t, entity.RoleAdmin, "admin@example.com")
	bookAt(t, srv, patient, doctor, "09:00")

	tests := []struct {
		name  string
		actor *entity.User
		input usecase.BookAppointmentInput
		want  error
	}{
		{
			name:  "slot already taken",
			actor: patient,
			input: usecase.BookAppointmentInput{DoctorID: doctor.ID, Date: bookingDate, Time: "09:00"},
			want:  domainerrors.ErrSlotUnavailable,
		},
		{
			name:  "doctor id points at a patient",
			actor: patient,
			input: usecase.BookAppointmentInput{DoctorID: patient.ID, Date: bookingDate, Time: "11:00"},
			want:  domainerrors.ErrInvalidDoctor,
		},
		{
			name:  "unknown doctor",
			actor: patient,
			input: usecase.BookAppointmentInput{DoctorID: uuid.New(), Date: bookingDate, Time: "11:00"},
			want:  domainerrors.ErrInvalidDoctor,
		},
		{
			name:  "time off the grid",
			actor: patient,
			input: usecase.BookAppointmentInput{DoctorID: doctor.ID, Date: bookingDate, Time: "11:15"},
			want:  domainerrors.ErrValidationFailed,
		},
		{
			name:  "time after the last slot",
			actor: patient,
			input: usecase.BookAppointmentInput{DoctorID: doctor.ID, Date: bookingDate, Time: "17:00"},
			want:  domainerrors.ErrValidationFailed,
		},
		{
			name:  "malformed date",
			actor: patient,
			input: usecase.BookAppointmentInput{DoctorID: doctor.ID, Date: "12/03/2025", Time: "11:00"},
			want:  domainerrors.ErrValidationFailed,
		},
		{
			name:  "staff booking without patient",
			actor: admin,
			input: usecase.BookAppointmentInput{DoctorID: doctor.ID, Date: bookingDate, Time: "11:00"},
			want:  domainerrors.ErrPatientIDRequired,
		},
		{
			name:  "staff booking for a non patient",
			actor: admin,
			input: usecase.BookAppointmentInput{PatientID: &doctor.ID, DoctorID: doctor.ID, Date: bookingDate, Time: "11:00"},
			want:  domainerrors.ErrInvalidPatient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := srv.Book(ctx, actorOf(tt.actor), &input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Only the first booking left a trace.
	assert.Equal(t, []entity.AuditAction{entity.AuditActionCreateAppointment}, env.auditActions())
	notifications, err := env.repos.NewNotificationRepository().ListByUser(ctx, doctor.ID, 10)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestAppointmentService_PatientAlwaysBooksForSelf(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	other := env.seedUser(t, entity.RolePatient, "other@example.com")

	appointment, err := srv.Book(context.Background(), actorOf(patient), &usecase.BookAppointmentInput{
		PatientID: &other.ID,
		DoctorID:  doctor.ID,
		Date:      bookingDate,
		Time:      "13:00",
	})
	require.NoError(t, err)
	assert.Equal(t, patient.ID, appointment.PatientID)
}

func TestAppointmentService_ConcurrentBookingsOfOneSlot(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")

	const attempts = 10
	patients := make([]*entity.User, attempts)
	for i := range patients {
		patients[i] = env.seedUser(t, entity.RolePatient, fmt.Sprintf("p%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = srv.Book(context.Background(), actorOf(patients[i]), &usecase.BookAppointmentInput{
				DoctorID: doctor.ID,
				Date:     bookingDate,
				Time:     "09:00",
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++

			continue
		}
		assert.ErrorIs(t, err, domainerrors.ErrSlotUnavailable)
	}
	assert.Equal(t, 1, successes)

	booked, err := env.repos.NewAppointmentRepository().FindBookedTimes(context.Background(), doctor.ID, bookingDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, booked)
}

func TestAppointmentService_StatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	otherDoctor := env.seedUser(t, entity.RoleDoctor, "doc2@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	admin := env.seedUser(t, entity.RoleAdmin, "admin@example.com")
	appointment := bookAt(t, srv, patient, doctor, "09:00")

	_, err := srv.ChangeStatus(ctx, actorOf(patient), appointment.ID, entity.AppointmentStatusConfirmed, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = srv.ChangeStatus(ctx, actorOf(otherDoctor), appointment.ID, entity.AppointmentStatusConfirmed, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrAppointmentNotFound)

	_, err = srv.ChangeStatus(ctx, actorOf(doctor), appointment.ID, entity.AppointmentStatusCompleted, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidStatusTransition)

	updated, err := srv.ChangeStatus(ctx, actorOf(doctor), appointment.ID, entity.AppointmentStatusConfirmed, "ip")
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusConfirmed, updated.Status)

	updated, err = srv.ChangeStatus(ctx, actorOf(admin), appointment.ID, entity.AppointmentStatusCompleted, "ip")
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusCompleted, updated.Status)

	_, err = srv.Cancel(ctx, actorOf(patient), appointment.ID, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidStatusTransition)

	_, err = srv.ChangeStatus(ctx, actorOf(doctor), appointment.ID, "archived", "ip")
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

// cancelAfterRead cancels the appointment right after the first read, the way a
// concurrent request would between the service's check and its write.
type cancelAfterRead struct {
	repository.AppointmentRepository
	once sync.Once
}

func (r *cancelAfterRead) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	appointment, err := r.AppointmentRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.once.Do(func() {
		err = r.AppointmentRepository.UpdateStatus(ctx, id, appointment.Status, entity.AppointmentStatusCancelled)
	})

	return appointment, err
}

func TestAppointmentService_TransitionDoesNotOverwriteConcurrentCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	appointment := bookAt(t, env.appointmentService(), patient, doctor, "09:00")

	srv := NewAppointmentService(AppointmentServiceParams{
		TxManager:        env.store.TransactionManager(),
		UserRepo:         env.repos.NewUserRepository(),
		AppointmentRepo:  &cancelAfterRead{AppointmentRepository: env.repos.NewAppointmentRepository()},
		NotificationRepo: env.repos.NewNotificationRepository(),
		Policy:           env.policy,
		Audit:            env.audit,
		Publisher:        env.publisher,
		Logger:           env.logger,
		Clock:            env.clock.Now,
	})

	_, err := srv.ChangeStatus(ctx, actorOf(doctor), appointment.ID, entity.AppointmentStatusConfirmed, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidStatusTransition)

	stored, err := env.repos.NewAppointmentRepository().FindByID(ctx, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusCancelled, stored.Status)
}

func TestAppointmentService_CancelNotifiesOtherParty(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	appointment := bookAt(t, srv, patient, doctor, "09:00")

	cancelled, err := srv.Cancel(ctx, actorOf(doctor), appointment.ID, "ip")
	require.NoError(t, err)
	assert.Equal(t, entity.AppointmentStatusCancelled, cancelled.Status)

	patientNotes, err := env.repos.NewNotificationRepository().ListByUser(ctx, patient.ID, 10)
	require.NoError(t, err)
	require.Len(t, patientNotes, 1)
	assert.Equal(t, "Appointment Cancelled", patientNotes[0].Title)

	assert.Len(t, env.publisher.events(service.EventAppointmentCancelled), 1)
	assert.Contains(t, env.auditActions(), entity.AuditActionCancelAppointment)
}

func TestAppointmentService_VisibilityAndListing(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	other := env.seedUser(t, entity.RolePatient, "other@example.com")
	admin := env.seedUser(t, entity.RoleAdmin, "admin@example.com")

	first := bookAt(t, srv, patient, doctor, "09:00")
	bookAt(t, srv, other, doctor, "10:00")

	_, err := srv.Get(ctx, actorOf(other), first.ID)
	assert.ErrorIs(t, err, domainerrors.ErrAppointmentNotFound)

	got, err := srv.Get(ctx, actorOf(patient), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	mine, err := srv.List(ctx, actorOf(patient), entity.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	doctorView, err := srv.List(ctx, actorOf(doctor), entity.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, doctorView, 2)
	assert.Equal(t, "09:00", doctorView[0].Time)

	all, err := srv.List(ctx, actorOf(admin), entity.AppointmentFilter{Status: entity.AppointmentStatusScheduled})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	upcoming, err := srv.Upcoming(ctx, actorOf(patient))
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	stats, err := srv.Stats(ctx, actorOf(doctor))
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 2, stats.Upcoming)

	_, err = srv.Today(ctx, actorOf(patient))
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestAppointmentService_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	admin := env.seedUser(t, entity.RoleAdmin, "admin@example.com")
	appointment := bookAt(t, srv, patient, doctor, "09:00")

	notes := "bring previous results"
	_, err := srv.Update(ctx, actorOf(patient), appointment.ID, &entity.AppointmentUpdate{Notes: &notes}, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	updated, err := srv.Update(ctx, actorOf(doctor), appointment.ID, &entity.AppointmentUpdate{Notes: &notes}, "ip")
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)

	_, err = srv.Update(ctx, actorOf(doctor), appointment.ID, &entity.AppointmentUpdate{}, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	assert.ErrorIs(t, srv.Delete(ctx, actorOf(doctor), appointment.ID, "ip"), domainerrors.ErrForbidden)
	require.NoError(t, srv.Delete(ctx, actorOf(admin), appointment.ID, "ip"))
	assert.ErrorIs(t, srv.Delete(ctx, actorOf(admin), appointment.ID, "ip"), domainerrors.ErrAppointmentNotFound)

	actions := env.auditActions()
	assert.Contains(t, actions, entity.AuditActionUpdateAppointment)
	assert.Contains(t, actions, entity.AuditActionDeleteAppointment)
}

func TestAppointmentService_ListDoctors(t *testing.T) {
	env := newTestEnv(t)
	srv := env.appointmentService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	inactive := env.seedUser(t, entity.RoleDoctor, "gone@example.com")
	env.seedUser(t, entity.RolePatient, "p@example.com")
	require.NoError(t, env.repos.NewUserRepository().SetActive(ctx, inactive.ID, false))

	doctors, err := srv.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, doctor.ID, doctors[0].ID)
}
