package impl

import (
	"context"
	"fmt"
	"log/slog"

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

// patientService implements the PatientUsecase interface.
type patientService struct {
	userRepo         repository.UserRepository
	appointmentRepo  repository.AppointmentRepository
	prescriptionRepo repository.PrescriptionRepository
	labResultRepo    repository.LabResultRepository
	notifications    repository.NotificationRepository
	policy           *policy.AccessPolicy
	audit            service.AuditSink
	logger           *slog.Logger
}

// PatientServiceParams holds dependencies for PatientService, injected by Fx.
type PatientServiceParams struct {
	fx.In

	UserRepo         repository.UserRepository
	AppointmentRepo  repository.AppointmentRepository
	PrescriptionRepo repository.PrescriptionRepository
	LabResultRepo    repository.LabResultRepository
	NotificationRepo repository.NotificationRepository
	Policy           *policy.AccessPolicy
	Audit            service.AuditSink
	Logger           *slog.Logger
}

// NewPatientService is the constructor for patientService.
func NewPatientService(params PatientServiceParams) usecase.PatientUsecase {
	return &patientService{
		userRepo:         params.UserRepo,
		appointmentRepo:  params.AppointmentRepo,
		prescriptionRepo: params.PrescriptionRepo,
		labResultRepo:    params.LabResultRepo,
		notifications:    params.NotificationRepo,
		policy:           params.Policy,
		audit:            params.Audit,
		logger:           params.Logger,
	}
}

func (srv *patientService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// List returns the patients visible to a doctor or an administrator.
func (srv *patientService) List(ctx context.Context, actor policy.Actor) ([]*entity.PatientSummary, error) {
	var (
		patients []*entity.PatientSummary
		err      error
	)
	switch actor.Role {
	case entity.RoleDoctor:
		patients, err = srv.userRepo.ListPatientsForDoctor(ctx, actor.ID)
	case entity.RoleAdmin:
		patients, err = srv.userRepo.ListPatients(ctx)
	case entity.RolePatient:
		return nil, domainerrors.ErrForbidden
	default:
		return nil, domainerrors.ErrForbidden
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patients")
	}

	return patients, nil
}

func (srv *patientService) Get(ctx context.Context, actor policy.Actor, patientID uuid.UUID, ipAddress string) (*entity.User, error) {
	patient, err := srv.authorizedPatient(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionViewPatientRecords, entity.AuditResourceUsers, &patientID, "profile", ipAddress)

	return patient, nil
}

// Records bundles the full chart of one patient.
func (srv *patientService) Records(ctx context.Context, actor policy.Actor, patientID uuid.UUID, ipAddress string) (*usecase.PatientRecords, error) {
	patient, err := srv.authorizedPatient(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}

	appointments, err := srv.appointmentRepo.ListByPatient(ctx, patientID, entity.AppointmentFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patient appointments")
	}
	prescriptions, err := srv.prescriptionRepo.ListByPatient(ctx, patientID, entity.PrescriptionFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patient prescriptions")
	}
	labResults, err := srv.labResultRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patient lab results")
	}

	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionViewPatientRecords, entity.AuditResourceUsers, &patientID, "records", ipAddress)

	return &usecase.PatientRecords{
		Patient:       patient,
		Appointments:  appointments,
		Prescriptions: prescriptions,
		LabResults:    labResults,
	}, nil
}

func (srv *patientService) LabResults(ctx context.Context, actor policy.Actor, patientID uuid.UUID) ([]*entity.LabResult, error) {
	if err := authorizePatient(ctx, srv.policy, actor, patientID); err != nil {
		return nil, err
	}

	results, err := srv.labResultRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list lab results")
	}

	return results, nil
}

// AddLabResult records a result and notifies the patient.
func (srv *patientService) AddLabResult(ctx context.Context, actor policy.Actor, patientID uuid.UUID, input *usecase.CreateLabResultInput) (*entity.LabResult, error) {
	if !policy.HasRole(actor, entity.RoleDoctor, entity.RoleAdmin) {
		return nil, domainerrors.ErrForbidden
	}
	patient, err := srv.authorizedPatient(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}

	result := &entity.LabResult{
		PatientID:      patient.ID,
		DoctorID:       actor.ID,
		TestName:       input.TestName,
		Category:       input.Category,
		ResultValue:    input.ResultValue,
		ReferenceRange: input.ReferenceRange,
		Unit:           input.Unit,
		Status:         input.Status,
		Notes:          input.Notes,
		TestDate:       input.TestDate,
		ResultDate:     input.ResultDate,
	}
	if result.Status == "" {
		result.Status = entity.LabResultStatusPending
	}
	if !result.Status.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown lab result status")
	}
	if err := validateDates(result.TestDate, result.ResultDate); err != nil {
		return nil, err
	}

	if err := srv.labResultRepo.Create(ctx, result); err != nil {
		return nil, errors.Wrap(err, "failed to create lab result")
	}

	if err := srv.notifications.Create(ctx, &entity.Notification{
		UserID:  patient.ID,
		Type:    entity.NotificationTypeLabResult,
		Title:   "New Lab Result",
		Message: fmt.Sprintf("Your %s result is available", result.TestName),
		Link:    "/lab-results",
	}); err != nil {
		srv.log(ctx).Warn("Failed to notify patient of lab result", slog.String("patientID", patient.ID.String()), slog.Any("error", err))
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), entity.AuditActionCreateLabResult, entity.AuditResourceLabResults, &result.ID,
		"patient="+patient.ID.String(), input.IPAddress)

	return result, nil
}

func (srv *patientService) authorizedPatient(ctx context.Context, actor policy.Actor, patientID uuid.UUID) (*entity.User, error) {
	if err := authorizePatient(ctx, srv.policy, actor, patientID); err != nil {
		return nil, err
	}

	patient, err := findPatient(ctx, srv.userRepo, patientID)
	if errors.Is(err, domainerrors.ErrInvalidPatient) {
		return nil, domainerrors.ErrPatientNotFound
	}

	return patient, err
}

// authorizePatient maps a policy denial to a reasonless 403.
func authorizePatient(ctx context.Context, accessPolicy *policy.AccessPolicy, actor policy.Actor, patientID uuid.UUID) error {
	decision, err := accessPolicy.CanAccessPatient(ctx, actor, patientID)
	if err != nil {
		return errors.Wrap(err, "failed to evaluate patient access")
	}
	if decision == policy.Deny {
		return domainerrors.ErrForbidden
	}

	return nil
}
