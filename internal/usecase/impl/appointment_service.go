package impl

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/policy"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const upcomingLimit = 5

// appointmentService implements the AppointmentUsecase interface.
type appointmentService struct {
	txManager       repository.TransactionManager
	userRepo        repository.UserRepository
	appointmentRepo repository.AppointmentRepository
	notifications   repository.NotificationRepository
	policy          *policy.AccessPolicy
	audit           service.AuditSink
	publisher       service.EventPublisher
	now             func() time.Time
	logger          *slog.Logger
}

// AppointmentServiceParams holds dependencies for AppointmentService, injected by Fx.
type AppointmentServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	UserRepo         repository.UserRepository
	AppointmentRepo  repository.AppointmentRepository
	NotificationRepo repository.NotificationRepository
	Policy           *policy.AccessPolicy
	Audit            service.AuditSink
	Publisher        service.EventPublisher
	Logger           *slog.Logger
	Clock            func() time.Time `optional:"true"`
}

// NewAppointmentService is the constructor for appointmentService.
func NewAppointmentService(params AppointmentServiceParams) usecase.AppointmentUsecase {
	now := params.Clock
	if now == nil {
		now = time.Now
	}

	return &appointmentService{
		txManager:       params.TxManager,
		userRepo:        params.UserRepo,
		appointmentRepo: params.AppointmentRepo,
		notifications:   params.NotificationRepo,
		policy:          params.Policy,
		audit:           params.Audit,
		publisher:       params.Publisher,
		now:             now,
		logger:          params.Logger,
	}
}

func (srv *appointmentService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *appointmentService) today() string {
	return srv.now().Format(entity.DateLayout)
}

// AvailableSlots returns the free grid slots of a doctor on date.
func (srv *appointmentService) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	if _, err := entity.ParseAppointmentDate(date); err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("date must be YYYY-MM-DD")
	}
	if _, err := findDoctor(ctx, srv.userRepo, doctorID); err != nil {
		return nil, err
	}

	booked, err := srv.appointmentRepo.FindBookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load booked slots")
	}

	return entity.FreeSlots(booked), nil
}

// Book re-derives availability and inserts the appointment in one transaction.
// The storage layer rejects a concurrent booking of the same slot.
func (srv *appointmentService) Book(ctx context.Context, actor policy.Actor, input *usecase.BookAppointmentInput) (*entity.Appointment, error) {
	appointment, err := srv.newAppointment(input)
	if err != nil {
		return nil, err
	}

	var doctor, patient *entity.User
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		users := repoFactory.NewUserRepository()
		appointments := repoFactory.NewAppointmentRepository()

		var err error
		if doctor, err = findDoctor(ctx, users, input.DoctorID); err != nil {
			return err
		}

		booked, err := appointments.FindBookedTimes(ctx, doctor.ID, appointment.Date)
		if err != nil {
			return errors.Wrap(err, "failed to load booked slots")
		}
		if slices.Contains(booked, appointment.Time) {
			return domainerrors.ErrSlotUnavailable
		}

		patientID, decision := srv.policy.CanBookFor(actor, input.PatientID)
		if decision == policy.Deny {
			if policy.HasRole(actor, entity.RoleDoctor, entity.RoleAdmin) {
				return domainerrors.ErrPatientIDRequired
			}

			return domainerrors.ErrForbidden
		}
		if patient, err = findPatient(ctx, users, patientID); err != nil {
			return err
		}

		appointment.PatientID = patient.ID
		appointment.DoctorID = doctor.ID
		if err := appointments.Create(ctx, appointment); err != nil {
			return err
		}

		if err := repoFactory.NewNotificationRepository().Create(ctx, &entity.Notification{
			UserID:  doctor.ID,
			Type:    entity.NotificationTypeAppointment,
			Title:   "New Appointment",
			Message: fmt.Sprintf("%s booked %s at %s", patient.FullName(), appointment.Date, appointment.Time),
			Link:    "/appointments/" + appointment.ID.String(),
		}); err != nil {
			return errors.Wrap(err, "failed to notify doctor")
		}

		entry := newAuditEntry(actorRef(actor.ID), entity.AuditActionCreateAppointment, entity.AuditResourceAppointments,
			&appointment.ID, fmt.Sprintf("doctor=%s date=%s time=%s", doctor.ID, appointment.Date, appointment.Time), input.IPAddress)

		return repoFactory.NewAuditRepository().Create(ctx, entry)
	})
	if err != nil {
		srv.log(ctx).Info("Booking rejected",
			slog.String("doctorID", input.DoctorID.String()),
			slog.String("date", input.Date),
			slog.String("time", input.Time),
			slog.Any("error", err))

		return nil, err
	}

	booked, err := srv.appointmentRepo.FindByID(ctx, appointment.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload appointment")
	}

	srv.publish(ctx, service.EventAppointmentBooked, patient, booked)
	srv.log(ctx).Info("Appointment booked",
		slog.String("appointmentID", booked.ID.String()),
		slog.String("doctorID", doctor.ID.String()),
		slog.String("patientID", patient.ID.String()))

	return booked, nil
}

func (srv *appointmentService) newAppointment(input *usecase.BookAppointmentInput) (*entity.Appointment, error) {
	if _, err := entity.ParseAppointmentDate(input.Date); err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("date must be YYYY-MM-DD")
	}
	if !entity.IsGridSlot(input.Time) {
		return nil, domainerrors.ErrValidationFailed.WithDetails("time must be a 30 minute slot between 08:00 and 16:30")
	}

	appointment := &entity.Appointment{
		Date:     input.Date,
		Time:     input.Time,
		Type:     input.Type,
		Status:   entity.AppointmentStatusScheduled,
		Reason:   input.Reason,
		Notes:    input.Notes,
		Duration: input.Duration,
		Location: input.Location,
	}
	if appointment.Type == "" {
		appointment.Type = entity.AppointmentTypeCheckup
	}
	if !appointment.Type.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown appointment type")
	}
	if appointment.Duration <= 0 {
		appointment.Duration = entity.DefaultAppointmentDuration
	}
	if appointment.Location == "" {
		appointment.Location = entity.DefaultAppointmentLocation
	}

	return appointment, nil
}

// List returns the caller's appointments.
func (srv *appointmentService) List(ctx context.Context, actor policy.Actor, filter entity.AppointmentFilter) ([]*entity.Appointment, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown appointment status")
	}

	var (
		appointments []*entity.Appointment
		err          error
	)
	switch actor.Role {
	case entity.RolePatient:
		appointments, err = srv.appointmentRepo.ListByPatient(ctx, actor.ID, filter)
	case entity.RoleDoctor:
		appointments, err = srv.appointmentRepo.ListByDoctor(ctx, actor.ID, filter)
	case entity.RoleAdmin:
		appointments, err = srv.appointmentRepo.ListAll(ctx, filter)
	default:
		return nil, domainerrors.ErrForbidden
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list appointments")
	}

	return appointments, nil
}

// Upcoming returns the next scheduled or confirmed visits from today.
func (srv *appointmentService) Upcoming(ctx context.Context, actor policy.Actor) ([]*entity.Appointment, error) {
	appointments, err := srv.appointmentRepo.ListUpcoming(ctx, actor.ID, actor.Role, srv.today(), upcomingLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list upcoming appointments")
	}

	return appointments, nil
}

// Today returns today's schedule. Doctors see their own, admins see every doctor's.
func (srv *appointmentService) Today(ctx context.Context, actor policy.Actor) ([]*entity.Appointment, error) {
	filter := entity.AppointmentFilter{Date: srv.today()}

	var (
		appointments []*entity.Appointment
		err          error
	)
	switch actor.Role {
	case entity.RoleDoctor:
		appointments, err = srv.appointmentRepo.ListByDoctor(ctx, actor.ID, filter)
	case entity.RoleAdmin:
		appointments, err = srv.appointmentRepo.ListAll(ctx, filter)
	case entity.RolePatient:
		return nil, domainerrors.ErrForbidden
	default:
		return nil, domainerrors.ErrForbidden
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list today's appointments")
	}

	return appointments, nil
}

func (srv *appointmentService) Stats(ctx context.Context, actor policy.Actor) (*entity.AppointmentStats, error) {
	stats, err := srv.appointmentRepo.Stats(ctx, actor.ID, actor.Role, srv.today())
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute appointment stats")
	}

	return stats, nil
}

// Get returns one appointment. An appointment the caller may not see reads as missing.
func (srv *appointmentService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*entity.Appointment, error) {
	appointment, err := srv.appointmentRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrAppointmentNotFound) {
		return nil, domainerrors.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find appointment")
	}
	if srv.policy.CanViewAppointment(actor, appointment) == policy.Deny {
		return nil, domainerrors.ErrAppointmentNotFound
	}

	return appointment, nil
}

// Update edits the descriptive fields of an appointment.
func (srv *appointmentService) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, update *entity.AppointmentUpdate, ipAddress string) (*entity.Appointment, error) {
	if update.IsEmpty() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("no appointment fields to update")
	}
	if update.Type != nil && !update.Type.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown appointment type")
	}
	if update.Duration != nil && *update.Duration <= 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("duration must be positive")
	}

	appointment, err := srv.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if srv.policy.CanEditAppointment(actor, appointment) == policy.Deny {
		return nil, domainerrors.ErrForbidden
	}

	if err := srv.appointmentRepo.Update(ctx, id, update); err != nil {
		return nil, errors.Wrap(err, "failed to update appointment")
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionUpdateAppointment, entity.AuditResourceAppointments, &id, "fields", ipAddress)

	return srv.appointmentRepo.FindByID(ctx, id)
}

// ChangeStatus moves an appointment along the status machine.
func (srv *appointmentService) ChangeStatus(ctx context.Context, actor policy.Actor, id uuid.UUID, status entity.AppointmentStatus, ipAddress string) (*entity.Appointment, error) {
	return srv.transition(ctx, actor, id, status, entity.AuditActionUpdateAppointment, ipAddress)
}

// Cancel frees the slot while keeping the row for history.
func (srv *appointmentService) Cancel(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) (*entity.Appointment, error) {
	return srv.transition(ctx, actor, id, entity.AppointmentStatusCancelled, entity.AuditActionCancelAppointment, ipAddress)
}

func (srv *appointmentService) transition(
	ctx context.Context,
	actor policy.Actor,
	id uuid.UUID,
	status entity.AppointmentStatus,
	action entity.AuditAction,
	ipAddress string,
) (*entity.Appointment, error) {
	if !status.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown appointment status")
	}

	appointment, err := srv.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !appointment.Status.CanTransitionTo(status) {
		return nil, domainerrors.ErrInvalidStatusTransition.WithDetails(
			fmt.Sprintf("%s -> %s", appointment.Status, status))
	}
	if srv.policy.CanTransitionAppointment(actor, appointment, status) == policy.Deny {
		return nil, domainerrors.ErrForbidden
	}

	if err := srv.appointmentRepo.UpdateStatus(ctx, id, appointment.Status, status); err != nil {
		if errors.Is(err, repository.ErrAppointmentStatusChanged) {
			return nil, domainerrors.ErrInvalidStatusTransition.WithDetails(
				fmt.Sprintf("appointment is no longer %s", appointment.Status))
		}

		return nil, errors.Wrap(err, "failed to update appointment status")
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), action, entity.AuditResourceAppointments, &id,
		fmt.Sprintf("status=%s->%s", appointment.Status, status), ipAddress)

	updated, err := srv.appointmentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload appointment")
	}
	if status == entity.AppointmentStatusCancelled {
		srv.notifyCancellation(ctx, actor, updated)
	}

	return updated, nil
}

// notifyCancellation tells the party that did not cancel.
func (srv *appointmentService) notifyCancellation(ctx context.Context, actor policy.Actor, appointment *entity.Appointment) {
	message := fmt.Sprintf("The appointment on %s at %s was cancelled", appointment.Date, appointment.Time)

	var recipients []uuid.UUID
	switch actor.Role {
	case entity.RolePatient:
		recipients = []uuid.UUID{appointment.DoctorID}
	case entity.RoleDoctor:
		recipients = []uuid.UUID{appointment.PatientID}
	case entity.RoleAdmin:
		recipients = []uuid.UUID{appointment.PatientID, appointment.DoctorID}
	}

	for _, userID := range recipients {
		if err := srv.notifications.Create(ctx, &entity.Notification{
			UserID:  userID,
			Type:    entity.NotificationTypeAppointment,
			Title:   "Appointment Cancelled",
			Message: message,
			Link:    "/appointments/" + appointment.ID.String(),
		}); err != nil {
			srv.log(ctx).Warn("Failed to create cancellation notification", slog.String("userID", userID.String()), slog.Any("error", err))
		}
	}

	patient, err := srv.userRepo.FindByID(ctx, appointment.PatientID)
	if err != nil {
		srv.log(ctx).Warn("Failed to load patient for cancellation event", slog.Any("error", err))

		return
	}
	srv.publish(ctx, service.EventAppointmentCancelled, patient, appointment)
}

// Delete hard-deletes an appointment. Only administrators may.
func (srv *appointmentService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) error {
	if actor.Role != entity.RoleAdmin || !actor.IsActive {
		return domainerrors.ErrForbidden
	}

	err := srv.appointmentRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrAppointmentNotFound) {
		return domainerrors.ErrAppointmentNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to delete appointment")
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionDeleteAppointment, entity.AuditResourceAppointments, &id, "", ipAddress)

	return nil
}

// ListDoctors returns the bookable doctors.
func (srv *appointmentService) ListDoctors(ctx context.Context) ([]*entity.User, error) {
	doctors, err := srv.userRepo.ListActiveDoctors(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list doctors")
	}

	return doctors, nil
}

func (srv *appointmentService) publish(ctx context.Context, eventType service.PortalEventType, patient *entity.User, appointment *entity.Appointment) {
	event := &service.PortalEvent{
		RequestID: deliverycontext.GetRequestIDFromContext(ctx),
		Type:      eventType,
		UserID:    patient.ID.String(),
		Email:     patient.Email,
		Name:      patient.FullName(),
		Data: map[string]string{
			"appointment_id": appointment.ID.String(),
			"date":           appointment.Date,
			"time":           appointment.Time,
			"doctor_name":    appointment.DoctorFirstName + " " + appointment.DoctorLastName,
			"location":       appointment.Location,
		},
	}
	if err := srv.publisher.Publish(ctx, event); err != nil {
		srv.log(ctx).Error("Failed to publish appointment event",
			slog.String("eventType", string(eventType)),
			slog.String("appointmentID", appointment.ID.String()),
			slog.Any("error", err))
	}
}

// findDoctor loads an active doctor or fails with ErrInvalidDoctor.
func findDoctor(ctx context.Context, users repository.UserRepository, id uuid.UUID) (*entity.User, error) {
	doctor, err := users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrInvalidDoctor
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find doctor")
	}
	if doctor.Role != entity.RoleDoctor || !doctor.IsActive {
		return nil, domainerrors.ErrInvalidDoctor
	}

	return doctor, nil
}

// findPatient loads a user holding the patient role or fails with ErrInvalidPatient.
func findPatient(ctx context.Context, users repository.UserRepository, id uuid.UUID) (*entity.User, error) {
	patient, err := users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrInvalidPatient
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find patient")
	}
	if patient.Role != entity.RolePatient {
		return nil, domainerrors.ErrInvalidPatient
	}

	return patient, nil
}
