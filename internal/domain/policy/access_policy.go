// Package policy decides whether an authenticated actor may touch a record.
// Decisions are recomputed on every call and never cached.
package policy

import (
	"context"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Decision is the outcome of an access check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

// Actor is the identity behind a fully verified session.
type Actor struct {
	ID       uuid.UUID
	Role     entity.Role
	IsActive bool
}

// ActorFromUser builds an Actor from a loaded user.
func ActorFromUser(user *entity.User) Actor {
	return Actor{ID: user.ID, Role: user.Role, IsActive: user.IsActive}
}

// AssignmentChecker answers whether a doctor has any appointment with a patient.
type AssignmentChecker interface {
	HasAssignment(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

// AccessPolicy evaluates role-scoped access rules.
type AccessPolicy struct {
	assignments AssignmentChecker
}

// NewAccessPolicy creates an AccessPolicy backed by assignments.
func NewAccessPolicy(assignments AssignmentChecker) *AccessPolicy {
	return &AccessPolicy{assignments: assignments}
}

// HasRole reports whether the actor holds one of roles.
func HasRole(actor Actor, roles ...entity.Role) bool {
	return entity.Roles(roles).Contains(actor.Role)
}

// CanAccessPatient decides access to patient-scoped data (profile, prescriptions,
// lab results, records) for patientID.
func (p *AccessPolicy) CanAccessPatient(ctx context.Context, actor Actor, patientID uuid.UUID) (Decision, error) {
	if !actor.IsActive {
		return Deny, nil
	}

	switch actor.Role {
	case entity.RoleAdmin:
		return Allow, nil
	case entity.RolePatient:
		return Decision(actor.ID == patientID), nil
	case entity.RoleDoctor:
		assigned, err := p.assignments.HasAssignment(ctx, actor.ID, patientID)
		if err != nil {
			return Deny, errors.Wrap(err, "failed to check doctor assignment")
		}

		return Decision(assigned), nil
	default:
		return Deny, nil
	}
}

// CanViewAppointment decides read access to a single appointment. Doctors see
// the appointments they hold.
func (p *AccessPolicy) CanViewAppointment(actor Actor, appointment *entity.Appointment) Decision {
	if !actor.IsActive {
		return Deny
	}

	switch actor.Role {
	case entity.RoleAdmin:
		return Allow
	case entity.RolePatient:
		return Decision(appointment.PatientID == actor.ID)
	case entity.RoleDoctor:
		return Decision(appointment.DoctorID == actor.ID)
	default:
		return Deny
	}
}

// CanEditAppointment decides whether actor may change descriptive fields.
// Patients only cancel, they never edit.
func (p *AccessPolicy) CanEditAppointment(actor Actor, appointment *entity.Appointment) Decision {
	if !actor.IsActive {
		return Deny
	}

	switch actor.Role {
	case entity.RoleAdmin:
		return Allow
	case entity.RoleDoctor:
		return Decision(appointment.DoctorID == actor.ID)
	case entity.RolePatient:
		return Deny
	default:
		return Deny
	}
}

// CanTransitionAppointment decides whether actor may move appointment to next.
// The status machine edge must exist and the actor must be allowed on it.
func (p *AccessPolicy) CanTransitionAppointment(actor Actor, appointment *entity.Appointment, next entity.AppointmentStatus) Decision {
	if !actor.IsActive || !appointment.Status.CanTransitionTo(next) {
		return Deny
	}

	ownDoctor := actor.Role == entity.RoleDoctor && appointment.DoctorID == actor.ID
	ownPatient := actor.Role == entity.RolePatient && appointment.PatientID == actor.ID

	switch actor.Role {
	case entity.RoleAdmin:
		return Allow
	case entity.RoleDoctor, entity.RolePatient:
		switch next {
		case entity.AppointmentStatusCancelled:
			return Decision(ownDoctor || ownPatient)
		case entity.AppointmentStatusConfirmed, entity.AppointmentStatusInProgress,
			entity.AppointmentStatusCompleted, entity.AppointmentStatusNoShow:
			return Decision(ownDoctor)
		case entity.AppointmentStatusScheduled:
			return Deny
		default:
			return Deny
		}
	default:
		return Deny
	}
}

// CanBookFor resolves the patient an appointment is booked for. A patient always
// books for itself and any supplied id is ignored. Staff must name a patient.
func (p *AccessPolicy) CanBookFor(actor Actor, requestedPatientID *uuid.UUID) (uuid.UUID, Decision) {
	if !actor.IsActive {
		return uuid.Nil, Deny
	}

	switch actor.Role {
	case entity.RolePatient:
		return actor.ID, Allow
	case entity.RoleDoctor, entity.RoleAdmin:
		if requestedPatientID == nil || *requestedPatientID == uuid.Nil {
			return uuid.Nil, Deny
		}

		return *requestedPatientID, Allow
	default:
		return uuid.Nil, Deny
	}
}

// CanManagePrescription decides whether actor may edit a prescription. Only the
// prescribing doctor may.
func (p *AccessPolicy) CanManagePrescription(actor Actor, prescription *entity.Prescription) Decision {
	if !actor.IsActive {
		return Deny
	}

	switch actor.Role {
	case entity.RoleDoctor:
		return Decision(prescription.DoctorID == actor.ID)
	case entity.RoleAdmin, entity.RolePatient:
		return Deny
	default:
		return Deny
	}
}
