package policy

import (
	"context"
	"testing"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type assignmentSet map[[2]uuid.UUID]bool

func (s assignmentSet) HasAssignment(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s[[2]uuid.UUID{doctorID, patientID}], nil
}

type failingAssignments struct{}

func (failingAssignments) HasAssignment(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, errors.New("db down")
}

func TestAccessPolicy_CanAccessPatient(t *testing.T) {
	doctorID := uuid.New()
	patientID := uuid.New()
	otherPatientID := uuid.New()
	assignments := assignmentSet{{doctorID, patientID}: true}
	p := NewAccessPolicy(assignments)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   Actor
		patient uuid.UUID
		want    Decision
	}{
		{"admin sees anyone", Actor{ID: uuid.New(), Role: entity.RoleAdmin, IsActive: true}, otherPatientID, Allow},
		{"patient sees self", Actor{ID: patientID, Role: entity.RolePatient, IsActive: true}, patientID, Allow},
		{"patient never sees another patient", Actor{ID: patientID, Role: entity.RolePatient, IsActive: true}, otherPatientID, Deny},
		{"assigned doctor", Actor{ID: doctorID, Role: entity.RoleDoctor, IsActive: true}, patientID, Allow},
		{"unassigned doctor", Actor{ID: doctorID, Role: entity.RoleDoctor, IsActive: true}, otherPatientID, Deny},
		{"inactive admin", Actor{ID: uuid.New(), Role: entity.RoleAdmin, IsActive: false}, patientID, Deny},
		{"unknown role", Actor{ID: uuid.New(), Role: entity.Role("nurse"), IsActive: true}, patientID, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.CanAccessPatient(ctx, tt.actor, tt.patient)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccessPolicy_CanAccessPatient_AssignmentError(t *testing.T) {
	p := NewAccessPolicy(failingAssignments{})

	got, err := p.CanAccessPatient(context.Background(), Actor{ID: uuid.New(), Role: entity.RoleDoctor, IsActive: true}, uuid.New())

	require.Error(t, err)
	assert.Equal(t, Deny, got)
}

func TestAccessPolicy_CanTransitionAppointment(t *testing.T) {
	doctorID := uuid.New()
	patientID := uuid.New()
	p := NewAccessPolicy(assignmentSet{})

	doctor := Actor{ID: doctorID, Role: entity.RoleDoctor, IsActive: true}
	otherDoctor := Actor{ID: uuid.New(), Role: entity.RoleDoctor, IsActive: true}
	patient := Actor{ID: patientID, Role: entity.RolePatient, IsActive: true}
	admin := Actor{ID: uuid.New(), Role: entity.RoleAdmin, IsActive: true}

	appt := func(status entity.AppointmentStatus) *entity.Appointment {
		return &entity.Appointment{DoctorID: doctorID, PatientID: patientID, Status: status}
	}

	tests := []struct {
		name  string
		actor Actor
		from  entity.AppointmentStatus
		to    entity.AppointmentStatus
		want  Decision
	}{
		{"doctor confirms own", doctor, entity.AppointmentStatusScheduled, entity.AppointmentStatusConfirmed, Allow},
		{"other doctor cannot confirm", otherDoctor, entity.AppointmentStatusScheduled, entity.AppointmentStatusConfirmed, Deny},
		{"patient cannot confirm", patient, entity.AppointmentStatusScheduled, entity.AppointmentStatusConfirmed, Deny},
		{"admin confirms", admin, entity.AppointmentStatusScheduled, entity.AppointmentStatusConfirmed, Allow},
		{"patient cancels own", patient, entity.AppointmentStatusScheduled, entity.AppointmentStatusCancelled, Allow},
		{"patient cancels confirmed", patient, entity.AppointmentStatusConfirmed, entity.AppointmentStatusCancelled, Allow},
		{"doctor cancels own", doctor, entity.AppointmentStatusConfirmed, entity.AppointmentStatusCancelled, Allow},
		{"doctor completes confirmed", doctor, entity.AppointmentStatusConfirmed, entity.AppointmentStatusCompleted, Allow},
		{"doctor completes in progress", doctor, entity.AppointmentStatusInProgress, entity.AppointmentStatusCompleted, Allow},
		{"patient cannot complete", patient, entity.AppointmentStatusConfirmed, entity.AppointmentStatusCompleted, Deny},
		{"cannot complete from scheduled", doctor, entity.AppointmentStatusScheduled, entity.AppointmentStatusCompleted, Deny},
		{"doctor marks no-show", doctor, entity.AppointmentStatusScheduled, entity.AppointmentStatusNoShow, Allow},
		{"patient cannot mark no-show", patient, entity.AppointmentStatusScheduled, entity.AppointmentStatusNoShow, Deny},
		{"terminal completed", admin, entity.AppointmentStatusCompleted, entity.AppointmentStatusCancelled, Deny},
		{"terminal cancelled", admin, entity.AppointmentStatusCancelled, entity.AppointmentStatusConfirmed, Deny},
		{"terminal no-show", admin, entity.AppointmentStatusNoShow, entity.AppointmentStatusCompleted, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CanTransitionAppointment(tt.actor, appt(tt.from), tt.to))
		})
	}
}

func TestAccessPolicy_CanBookFor(t *testing.T) {
	p := NewAccessPolicy(assignmentSet{})
	patientID := uuid.New()
	supplied := uuid.New()

	got, decision := p.CanBookFor(Actor{ID: patientID, Role: entity.RolePatient, IsActive: true}, &supplied)
	assert.Equal(t, Allow, decision)
	assert.Equal(t, patientID, got, "a patient always books for itself")

	got, decision = p.CanBookFor(Actor{ID: uuid.New(), Role: entity.RoleDoctor, IsActive: true}, &supplied)
	assert.Equal(t, Allow, decision)
	assert.Equal(t, supplied, got)

	_, decision = p.CanBookFor(Actor{ID: uuid.New(), Role: entity.RoleAdmin, IsActive: true}, nil)
	assert.Equal(t, Deny, decision)
}

func TestAccessPolicy_CanViewAppointment(t *testing.T) {
	p := NewAccessPolicy(assignmentSet{})
	appt := &entity.Appointment{DoctorID: uuid.New(), PatientID: uuid.New()}

	assert.Equal(t, Allow, p.CanViewAppointment(Actor{ID: appt.PatientID, Role: entity.RolePatient, IsActive: true}, appt))
	assert.Equal(t, Allow, p.CanViewAppointment(Actor{ID: appt.DoctorID, Role: entity.RoleDoctor, IsActive: true}, appt))
	assert.Equal(t, Deny, p.CanViewAppointment(Actor{ID: uuid.New(), Role: entity.RolePatient, IsActive: true}, appt))
	assert.Equal(t, Deny, p.CanViewAppointment(Actor{ID: uuid.New(), Role: entity.RoleDoctor, IsActive: true}, appt))
}
