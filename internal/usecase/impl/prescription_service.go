package impl

import (
	"context"
	"fmt"
	"log/slog"
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

// prescriptionService implements the PrescriptionUsecase interface.
type prescriptionService struct {
	userRepo         repository.UserRepository
	prescriptionRepo repository.PrescriptionRepository
	notifications    repository.NotificationRepository
	policy           *policy.AccessPolicy
	audit            service.AuditSink
	now              func() time.Time
	logger           *slog.Logger
}

// PrescriptionServiceParams holds dependencies for PrescriptionService, injected by Fx.
type PrescriptionServiceParams struct {
	fx.In

	UserRepo         repository.UserRepository
	PrescriptionRepo repository.PrescriptionRepository
	NotificationRepo repository.NotificationRepository
	Policy           *policy.AccessPolicy
	Audit            service.AuditSink
	Logger           *slog.Logger
	Clock            func() time.Time `optional:"true"`
}

// NewPrescriptionService is the constructor for prescriptionService.
func NewPrescriptionService(params PrescriptionServiceParams) usecase.PrescriptionUsecase {
	now := params.Clock
	if now == nil {
		now = time.Now
	}

	return &prescriptionService{
		userRepo:         params.UserRepo,
		prescriptionRepo: params.PrescriptionRepo,
		notifications:    params.NotificationRepo,
		policy:           params.Policy,
		audit:            params.Audit,
		now:              now,
		logger:           params.Logger,
	}
}

func (srv *prescriptionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// List scopes prescriptions by role: patients see their own, doctors the ones
// they wrote and administrators all of them.
func (srv *prescriptionService) List(ctx context.Context, actor policy.Actor, filter entity.PrescriptionFilter) ([]*entity.Prescription, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown prescription status")
	}

	var (
		prescriptions []*entity.Prescription
		err           error
	)
	switch actor.Role {
	case entity.RolePatient:
		filter.PatientID = uuid.Nil
		prescriptions, err = srv.prescriptionRepo.ListByPatient(ctx, actor.ID, filter)
	case entity.RoleDoctor:
		prescriptions, err = srv.prescriptionRepo.ListByDoctor(ctx, actor.ID, filter)
	case entity.RoleAdmin:
		prescriptions, err = srv.prescriptionRepo.ListAll(ctx, filter)
	default:
		return nil, domainerrors.ErrForbidden
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list prescriptions")
	}

	return prescriptions, nil
}

func (srv *prescriptionService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*entity.Prescription, error) {
	prescription, err := srv.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RoleDoctor && actor.IsActive && prescription.DoctorID == actor.ID {
		return prescription, nil
	}
	if err := authorizePatient(ctx, srv.policy, actor, prescription.PatientID); err != nil {
		return nil, err
	}

	return prescription, nil
}

// Create writes a new active prescription. Only doctors with access to the patient may.
func (srv *prescriptionService) Create(ctx context.Context, actor policy.Actor, input *usecase.CreatePrescriptionInput) (*entity.Prescription, error) {
	if actor.Role != entity.RoleDoctor {
		return nil, domainerrors.ErrForbidden
	}
	if input.PatientID == uuid.Nil {
		return nil, domainerrors.ErrPatientIDRequired
	}
	if input.RefillsTotal < 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("refills must not be negative")
	}
	if err := authorizePatient(ctx, srv.policy, actor, input.PatientID); err != nil {
		return nil, err
	}
	patient, err := findPatient(ctx, srv.userRepo, input.PatientID)
	if err != nil {
		return nil, err
	}

	prescription := &entity.Prescription{
		PatientID:        patient.ID,
		DoctorID:         actor.ID,
		Medication:       input.Medication,
		Dosage:           input.Dosage,
		Frequency:        input.Frequency,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		RefillsTotal:     input.RefillsTotal,
		RefillsRemaining: input.RefillsTotal,
		Status:           entity.PrescriptionStatusActive,
		Pharmacy:         input.Pharmacy,
		Instructions:     input.Instructions,
		SideEffects:      input.SideEffects,
	}
	if prescription.StartDate == "" {
		prescription.StartDate = srv.now().Format(entity.DateLayout)
	}
	if err := validateDates(prescription.StartDate, prescription.EndDate); err != nil {
		return nil, err
	}

	if err := srv.prescriptionRepo.Create(ctx, prescription); err != nil {
		return nil, errors.Wrap(err, "failed to create prescription")
	}

	srv.notify(ctx, patient.ID, entity.NotificationTypePrescription, "New Prescription",
		fmt.Sprintf("%s %s has been prescribed", prescription.Medication, prescription.Dosage), prescription.ID)
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionCreatePrescription, entity.AuditResourcePrescriptions, &prescription.ID,
		"patient="+patient.ID.String(), input.IPAddress)

	return srv.find(ctx, prescription.ID)
}

// Update lets the prescribing doctor amend a prescription.
func (srv *prescriptionService) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, update *entity.PrescriptionUpdate, ipAddress string) (*entity.Prescription, error) {
	if update.IsEmpty() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("no prescription fields to update")
	}
	if update.Status != nil && !update.Status.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown prescription status")
	}
	if update.RefillsRemaining != nil && *update.RefillsRemaining < 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("refills must not be negative")
	}
	if update.EndDate != nil && *update.EndDate != "" {
		if err := validateDates(*update.EndDate); err != nil {
			return nil, err
		}
	}

	prescription, err := srv.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if srv.policy.CanManagePrescription(actor, prescription) == policy.Deny {
		return nil, domainerrors.ErrForbidden
	}

	if err := srv.prescriptionRepo.Update(ctx, id, update); err != nil {
		return nil, errors.Wrap(err, "failed to update prescription")
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionUpdatePrescription, entity.AuditResourcePrescriptions, &id, "", ipAddress)

	return srv.find(ctx, id)
}

// RequestRefill consumes one refill and asks the prescribing doctor to act.
func (srv *prescriptionService) RequestRefill(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) (*entity.Prescription, error) {
	if actor.Role != entity.RolePatient || !actor.IsActive {
		return nil, domainerrors.ErrForbidden
	}

	prescription, err := srv.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if prescription.PatientID != actor.ID {
		return nil, domainerrors.ErrForbidden
	}
	if prescription.Status != entity.PrescriptionStatusActive {
		return nil, domainerrors.ErrValidationFailed.WithDetails("prescription is not active")
	}

	consumed, err := srv.prescriptionRepo.ConsumeRefill(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to consume refill")
	}
	if !consumed {
		return nil, domainerrors.ErrNoRefillsRemaining
	}

	srv.notify(ctx, prescription.DoctorID, entity.NotificationTypeRefillRequest, "Refill Request",
		fmt.Sprintf("%s %s requested a refill of %s", prescription.PatientFirstName, prescription.PatientLastName, prescription.Medication), id)
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionRefillRequest, entity.AuditResourcePrescriptions, &id, "", ipAddress)

	return srv.find(ctx, id)
}

func (srv *prescriptionService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) error {
	if actor.Role != entity.RoleAdmin || !actor.IsActive {
		return domainerrors.ErrForbidden
	}

	err := srv.prescriptionRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrPrescriptionNotFound) {
		return domainerrors.ErrPrescriptionNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to delete prescription")
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionDeletePrescription, entity.AuditResourcePrescriptions, &id, "", ipAddress)

	return nil
}

func (srv *prescriptionService) find(ctx context.Context, id uuid.UUID) (*entity.Prescription, error) {
	prescription, err := srv.prescriptionRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrPrescriptionNotFound) {
		return nil, domainerrors.ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find prescription")
	}

	return prescription, nil
}

func (srv *prescriptionService) notify(ctx context.Context, userID uuid.UUID, kind entity.NotificationType, title, message string, prescriptionID uuid.UUID) {
	if err := srv.notifications.Create(ctx, &entity.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    "/prescriptions/" + prescriptionID.String(),
	}); err != nil {
		srv.log(ctx).Warn("Failed to create prescription notification", slog.String("userID", userID.String()), slog.Any("error", err))
	}
}

func validateDates(dates ...string) error {
	for _, date := range dates {
		if date == "" {
			continue
		}
		if _, err := entity.ParseAppointmentDate(date); err != nil {
			return domainerrors.ErrValidationFailed.WithDetails("dates must be YYYY-MM-DD")
		}
	}

	return nil
}
