package usecase

import (
	"context"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/policy"

	"github.com/google/uuid"
)

// BookAppointmentInput defines a booking request. PatientID is only honoured
// for staff callers.
type BookAppointmentInput struct {
	PatientID *uuid.UUID
	DoctorID  uuid.UUID
	Date      string
	Time      string
	Type      entity.AppointmentType
	Reason    string
	Notes     string
	Duration  int
	Location  string
	IPAddress string
}

// AppointmentUsecase schedules visits and moves them through their lifecycle.
type AppointmentUsecase interface {
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
	Book(ctx context.Context, actor policy.Actor, input *BookAppointmentInput) (*entity.Appointment, error)
	List(ctx context.Context, actor policy.Actor, filter entity.AppointmentFilter) ([]*entity.Appointment, error)
	Upcoming(ctx context.Context, actor policy.Actor) ([]*entity.Appointment, error)
	Today(ctx context.Context, actor policy.Actor) ([]*entity.Appointment, error)
	Stats(ctx context.Context, actor policy.Actor) (*entity.AppointmentStats, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*entity.Appointment, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, update *entity.AppointmentUpdate, ipAddress string) (*entity.Appointment, error)
	ChangeStatus(ctx context.Context, actor policy.Actor, id uuid.UUID, status entity.AppointmentStatus, ipAddress string) (*entity.Appointment, error)
	Cancel(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) (*entity.Appointment, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) error
	ListDoctors(ctx context.Context) ([]*entity.User, error)
}
