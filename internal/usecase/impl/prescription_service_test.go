package impl

import (
	"context"
	"testing"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrescriptionService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	srv := env.prescriptionService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	otherDoctor := env.seedUser(t, entity.RoleDoctor, "doc2@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	admin := env.seedUser(t, entity.RoleAdmin, "admin@example.com")
	input := &usecase.CreatePrescriptionInput{
		PatientID:    patient.ID,
		Medication:   "Lisinopril",
		Dosage:       "10mg",
		Frequency:    "daily",
		RefillsTotal: 1,
	}

	_, err := srv.Create(ctx, actorOf(doctor), input)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden, "no appointment links doctor and patient yet")

	bookAt(t, env.appointmentService(), patient, doctor, "09:00")
	prescription, err := srv.Create(ctx, actorOf(doctor), input)
	require.NoError(t, err)
	assert.Equal(t, entity.PrescriptionStatusActive, prescription.Status)
	assert.Equal(t, 1, prescription.RefillsRemaining)
	assert.Equal(t, "2025-03-10", prescription.StartDate)

	dosage := "20mg"
	_, err = srv.Update(ctx, actorOf(otherDoctor), prescription.ID, &entity.PrescriptionUpdate{Dosage: &dosage}, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	updated, err := srv.Update(ctx, actorOf(doctor), prescription.ID, &entity.PrescriptionUpdate{Dosage: &dosage}, "ip")
	require.NoError(t, err)
	assert.Equal(t, dosage, updated.Dosage)

	_, err = srv.RequestRefill(ctx, actorOf(doctor), prescription.ID, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	refilled, err := srv.RequestRefill(ctx, actorOf(patient), prescription.ID, "ip")
	require.NoError(t, err)
	assert.Equal(t, 0, refilled.RefillsRemaining)

	_, err = srv.RequestRefill(ctx, actorOf(patient), prescription.ID, "ip")
	assert.ErrorIs(t, err, domainerrors.ErrNoRefillsRemaining)

	refillNotes, err := env.repos.NewNotificationRepository().ListByUser(ctx, doctor.ID, 10)
	require.NoError(t, err)
	kinds := make([]entity.NotificationType, 0, len(refillNotes))
	for _, n := range refillNotes {
		kinds = append(kinds, n.Type)
	}
	assert.Contains(t, kinds, entity.NotificationTypeRefillRequest)

	assert.ErrorIs(t, srv.Delete(ctx, actorOf(doctor), prescription.ID, "ip"), domainerrors.ErrForbidden)
	require.NoError(t, srv.Delete(ctx, actorOf(admin), prescription.ID, "ip"))
	_, err = srv.Get(ctx, actorOf(admin), prescription.ID)
	assert.ErrorIs(t, err, domainerrors.ErrPrescriptionNotFound)

	actions := env.auditActions()
	for _, want := range []entity.AuditAction{
		entity.AuditActionCreatePrescription,
		entity.AuditActionUpdatePrescription,
		entity.AuditActionRefillRequest,
		entity.AuditActionDeletePrescription,
	} {
		assert.Contains(t, actions, want)
	}
}

func TestPrescriptionService_ListingIsScoped(t *testing.T) {
	env := newTestEnv(t)
	srv := env.prescriptionService()
	ctx := context.Background()
	doctor := env.seedUser(t, entity.RoleDoctor, "doc@example.com")
	patient := env.seedUser(t, entity.RolePatient, "p@example.com")
	other := env.seedUser(t, entity.RolePatient, "other@example.com")
	bookAt(t, env.appointmentService(), patient, doctor, "09:00")
	bookAt(t, env.appointmentService(), other, doctor, "09:30")

	for _, p := range []*entity.User{patient, other} {
		_, err := srv.Create(ctx, actorOf(doctor), &usecase.CreatePrescriptionInput{PatientID: p.ID, Medication: "Aspirin", Dosage: "81mg", Frequency: "daily"})
		require.NoError(t, err)
	}

	own, err := srv.List(ctx, actorOf(patient), entity.PrescriptionFilter{PatientID: other.ID})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, patient.ID, own[0].PatientID)

	_, err = srv.Get(ctx, actorOf(patient), own[0].ID)
	require.NoError(t, err)

	written, err := srv.List(ctx, actorOf(doctor), entity.PrescriptionFilter{Status: entity.PrescriptionStatusActive})
	require.NoError(t, err)
	assert.Len(t, written, 2)

	theirs, err := srv.List(ctx, actorOf(other), entity.PrescriptionFilter{})
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	_, err = srv.Get(ctx, actorOf(patient), theirs[0].ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}
