package memory

import (
	"cmp"
	"context"
	"slices"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/errors"

	"github.com/google/uuid"
)

type appointmentRepository struct {
	scope scope
}

// Create inserts a booking and enforces one non-cancelled appointment per
// doctor slot, mirroring the partial unique index of the SQL backend.
func (r *appointmentRepository) Create(_ context.Context, appointment *entity.Appointment) error {
	return r.scope.run(func(t *tables) error {
		if _, ok := t.users[appointment.PatientID]; !ok {
			return domainerrors.ErrValidationFailed.WrapMessage("appointment references an unknown user")
		}
		if _, ok := t.users[appointment.DoctorID]; !ok {
			return domainerrors.ErrValidationFailed.WrapMessage("appointment references an unknown user")
		}
		if appointment.Status != entity.AppointmentStatusCancelled && slotTaken(t, appointment, uuid.Nil) {
			return errors.Wrap(domainerrors.ErrSlotUnavailable, "slot already booked")
		}

		if appointment.ID == uuid.Nil {
			appointment.ID = uuid.New()
		}
		now := r.scope.now()
		appointment.CreatedAt = now
		appointment.UpdatedAt = now
		t.appointments[appointment.ID] = stripAppointmentDisplay(*appointment)

		return nil
	})
}

func (r *appointmentRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Appointment, error) {
	var found *entity.Appointment
	err := r.scope.run(func(t *tables) error {
		a, ok := t.appointments[id]
		if !ok {
			return repository.ErrAppointmentNotFound
		}
		found = withAppointmentParties(t, a)

		return nil
	})

	return found, err
}

func (r *appointmentRepository) FindBookedTimes(_ context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	var times []string
	err := r.scope.run(func(t *tables) error {
		for _, a := range t.appointments {
			if a.DoctorID == doctorID && a.Date == date && a.Status != entity.AppointmentStatusCancelled {
				times = append(times, a.Time)
			}
		}

		return nil
	})
	slices.Sort(times)

	return times, err
}

func (r *appointmentRepository) ListByPatient(_ context.Context, patientID uuid.UUID, filter entity.AppointmentFilter) ([]*entity.Appointment, error) {
	return r.list(func(a *entity.Appointment) bool { return a.PatientID == patientID }, filter, latestFirst), nil
}

func (r *appointmentRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID, filter entity.AppointmentFilter) ([]*entity.Appointment, error) {
	return r.list(func(a *entity.Appointment) bool { return a.DoctorID == doctorID }, filter, earliestFirst), nil
}

func (r *appointmentRepository) ListAll(_ context.Context, filter entity.AppointmentFilter) ([]*entity.Appointment, error) {
	return r.list(func(*entity.Appointment) bool { return true }, filter, latestFirst), nil
}

func (r *appointmentRepository) ListUpcoming(_ context.Context, userID uuid.UUID, role entity.Role, fromDate string, limit int) ([]*entity.Appointment, error) {
	match := func(a *entity.Appointment) bool {
		return visibleTo(a, userID, role) && isActive(a.Status) && a.Date >= fromDate
	}

	return r.list(match, entity.AppointmentFilter{Limit: limit}, earliestFirst), nil
}

func (r *appointmentRepository) Stats(_ context.Context, userID uuid.UUID, role entity.Role, today string) (*entity.AppointmentStats, error) {
	stats := &entity.AppointmentStats{}
	err := r.scope.run(func(t *tables) error {
		for _, a := range t.appointments {
			if !visibleTo(&a, userID, role) {
				continue
			}
			stats.Total++
			switch {
			case isActive(a.Status) && a.Date >= today:
				stats.Upcoming++
			case a.Status == entity.AppointmentStatusCompleted:
				stats.Completed++
			case a.Status == entity.AppointmentStatusCancelled:
				stats.Cancelled++
			}
		}

		return nil
	})

	return stats, err
}

func (r *appointmentRepository) HasAssignment(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var assigned bool
	err := r.scope.run(func(t *tables) error {
		for _, a := range t.appointments {
			if a.DoctorID == doctorID && a.PatientID == patientID {
				assigned = true
				break
			}
		}

		return nil
	})

	return assigned, err
}

func (r *appointmentRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, status entity.AppointmentStatus) error {
	return r.mutate(id, func(t *tables, a *entity.Appointment) error {
		if a.Status != from {
			return repository.ErrAppointmentStatusChanged
		}
		if status != entity.AppointmentStatusCancelled && a.Status == entity.AppointmentStatusCancelled && slotTaken(t, a, a.ID) {
			return errors.Wrap(domainerrors.ErrSlotUnavailable, "failed to update appointment status")
		}
		a.Status = status

		return nil
	})
}

func (r *appointmentRepository) Update(_ context.Context, id uuid.UUID, update *entity.AppointmentUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	return r.mutate(id, func(_ *tables, a *entity.Appointment) error {
		assign(&a.Type, update.Type)
		assign(&a.Reason, update.Reason)
		assign(&a.Notes, update.Notes)
		assign(&a.Location, update.Location)
		assign(&a.Duration, update.Duration)

		return nil
	})
}

func (r *appointmentRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.scope.run(func(t *tables) error {
		if _, ok := t.appointments[id]; !ok {
			return repository.ErrAppointmentNotFound
		}
		delete(t.appointments, id)

		return nil
	})
}

func (r *appointmentRepository) mutate(id uuid.UUID, fn func(t *tables, a *entity.Appointment) error) error {
	return r.scope.run(func(t *tables) error {
		a, ok := t.appointments[id]
		if !ok {
			return repository.ErrAppointmentNotFound
		}
		if err := fn(t, &a); err != nil {
			return err
		}
		a.UpdatedAt = r.scope.now()
		t.appointments[id] = a

		return nil
	})
}

func (r *appointmentRepository) list(match func(*entity.Appointment) bool, filter entity.AppointmentFilter, order func(a, b *entity.Appointment) int) []*entity.Appointment {
	var appointments []*entity.Appointment
	_ = r.scope.run(func(t *tables) error {
		for _, a := range t.appointments {
			if match(&a) && matchesFilter(&a, filter) {
				appointments = append(appointments, withAppointmentParties(t, a))
			}
		}

		return nil
	})
	slices.SortFunc(appointments, order)

	return limit(appointments, filter.Limit)
}

func slotTaken(t *tables, candidate *entity.Appointment, ignore uuid.UUID) bool {
	for id, a := range t.appointments {
		if id == ignore || a.Status == entity.AppointmentStatusCancelled {
			continue
		}
		if a.DoctorID == candidate.DoctorID && a.Date == candidate.Date && a.Time == candidate.Time {
			return true
		}
	}

	return false
}

func matchesFilter(a *entity.Appointment, filter entity.AppointmentFilter) bool {
	switch {
	case filter.Status != "" && a.Status != filter.Status:
		return false
	case filter.Date != "" && a.Date != filter.Date:
		return false
	case filter.From != "" && a.Date < filter.From:
		return false
	case filter.To != "" && a.Date > filter.To:
		return false
	default:
		return true
	}
}

func visibleTo(a *entity.Appointment, userID uuid.UUID, role entity.Role) bool {
	switch role {
	case entity.RolePatient:
		return a.PatientID == userID
	case entity.RoleDoctor:
		return a.DoctorID == userID
	case entity.RoleAdmin:
		return true
	default:
		return false
	}
}

func isActive(status entity.AppointmentStatus) bool {
	return status == entity.AppointmentStatusScheduled || status == entity.AppointmentStatusConfirmed
}

func earliestFirst(a, b *entity.Appointment) int {
	return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Time, b.Time))
}

func latestFirst(a, b *entity.Appointment) int {
	return earliestFirst(b, a)
}

func withAppointmentParties(t *tables, a entity.Appointment) *entity.Appointment {
	if patient, ok := t.users[a.PatientID]; ok {
		a.PatientFirstName = patient.FirstName
		a.PatientLastName = patient.LastName
		a.PatientEmail = patient.Email
	}
	if doctor, ok := t.users[a.DoctorID]; ok {
		a.DoctorFirstName = doctor.FirstName
		a.DoctorLastName = doctor.LastName
		a.DoctorSpecialty = doctor.Specialty
	}

	return &a
}

func stripAppointmentDisplay(a entity.Appointment) entity.Appointment {
	a.PatientFirstName, a.PatientLastName, a.PatientEmail = "", "", ""
	a.DoctorFirstName, a.DoctorLastName, a.DoctorSpecialty = "", "", ""

	return a
}
