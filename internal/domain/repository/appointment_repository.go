package repository

import (
	"context"
	"errors"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrAppointmentNotFound is returned when an appointment is not found.
var ErrAppointmentNotFound = errors.New("appointment not found")

// ErrAppointmentStatusChanged is returned when a status update finds the
// appointment no longer in the status the caller read.
var ErrAppointmentStatusChanged = errors.New("appointment status changed concurrently")

// AppointmentRepository defines persistence for appointments and the derived
// doctor-patient assignment relationship.
type AppointmentRepository interface {
	// Create inserts an appointment. The store rejects a second active booking of
	// the same doctor, date and time with ErrSlotUnavailable.
	Create(ctx context.Context, appointment *entity.Appointment) error

	// FindByID retrieves an appointment joined with patient and doctor names.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)

	// FindBookedTimes returns the start times of non-cancelled bookings for a doctor on date.
	FindBookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)

	// ListByPatient returns a patient's appointments, latest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, filter entity.AppointmentFilter) ([]*entity.Appointment, error)

	// ListByDoctor returns a doctor's appointments, earliest first.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, filter entity.AppointmentFilter) ([]*entity.Appointment, error)

	// ListAll returns every appointment, latest first.
	ListAll(ctx context.Context, filter entity.AppointmentFilter) ([]*entity.Appointment, error)

	// ListUpcoming returns scheduled or confirmed appointments on or after fromDate.
	ListUpcoming(ctx context.Context, userID uuid.UUID, role entity.Role, fromDate string, limit int) ([]*entity.Appointment, error)

	// Stats summarises the appointments of userID seen through role.
	Stats(ctx context.Context, userID uuid.UUID, role entity.Role, today string) (*entity.AppointmentStats, error)

	// HasAssignment reports whether any appointment, in any status, links doctorID and patientID.
	HasAssignment(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)

	// UpdateStatus moves an appointment from status from to status to. The write
	// only applies while the stored status still equals from; otherwise it
	// returns ErrAppointmentStatusChanged.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.AppointmentStatus) error

	// Update applies the non-nil fields of update.
	Update(ctx context.Context, id uuid.UUID, update *entity.AppointmentUpdate) error

	// Delete removes the row. Only administrators reach this.
	Delete(ctx context.Context, id uuid.UUID) error
}
