package handler

import (
	"log/slog"
	"net/http"

	"healthbridge/internal/delivery/api/response"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AppointmentHandlerParams holds dependencies for AppointmentHandler, injected by Fx.
type AppointmentHandlerParams struct {
	fx.In

	AppointmentUC usecase.AppointmentUsecase
	Logger        *slog.Logger
}

// AppointmentHandler serves scheduling endpoints.
type AppointmentHandler struct {
	appointmentUC usecase.AppointmentUsecase
	logger        *slog.Logger
}

// NewAppointmentHandler is the constructor for AppointmentHandler.
func NewAppointmentHandler(params AppointmentHandlerParams) *AppointmentHandler {
	return &AppointmentHandler{
		appointmentUC: params.AppointmentUC,
		logger:        params.Logger,
	}
}

// AvailableSlotsQuery represents the query of the slot lookup
type AvailableSlotsQuery struct {
	DoctorID string `query:"doctor_id" json:"doctor_id" validate:"required,uuid"`
	Date     string `query:"date" json:"date" validate:"required,date"`
}

// BookAppointmentRequest represents the request body for booking. PatientID is
// only honoured for staff.
type BookAppointmentRequest struct {
	PatientID *string `json:"patient_id" validate:"omitempty,uuid"`
	DoctorID  string  `json:"doctor_id" validate:"required,uuid"`
	Date      string  `json:"date" validate:"required,date"`
	Time      string  `json:"time" validate:"required,hhmm"`
	Type      string  `json:"type" validate:"omitempty,oneof=checkup follow-up consultation emergency procedure lab-work"`
	Reason    string  `json:"reason" validate:"max=1000"`
	Notes     string  `json:"notes" validate:"max=2000"`
	Duration  int     `json:"duration" validate:"omitempty,min=5,max=480"`
	Location  string  `json:"location" validate:"max=200"`
}

// ListAppointmentsQuery represents the filters of the appointment listing
type ListAppointmentsQuery struct {
	Status string `query:"status" json:"status" validate:"omitempty,oneof=scheduled confirmed in-progress completed cancelled no-show"`
	Date   string `query:"date" json:"date" validate:"omitempty,date"`
	From   string `query:"from" json:"from" validate:"omitempty,date"`
	To     string `query:"to" json:"to" validate:"omitempty,date"`
	Limit  int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=500"`
}

// UpdateAppointmentRequest represents the editable appointment fields
type UpdateAppointmentRequest struct {
	Type     *string `json:"type" validate:"omitempty,oneof=checkup follow-up consultation emergency procedure lab-work"`
	Reason   *string `json:"reason" validate:"omitempty,max=1000"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
	Location *string `json:"location" validate:"omitempty,max=200"`
	Duration *int    `json:"duration" validate:"omitempty,min=5,max=480"`
}

// ChangeStatusRequest represents the request body of a status transition
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled confirmed in-progress completed cancelled no-show"`
}

// SlotsResponse lists free slot start times
type SlotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// AppointmentResponse wraps a single appointment
type AppointmentResponse struct {
	Message     string           `json:"message,omitempty"`
	Appointment *AppointmentView `json:"appointment"`
}

// AppointmentsResponse wraps an appointment list
type AppointmentsResponse struct {
	Appointments []*AppointmentView `json:"appointments"`
}

// DoctorsResponse wraps the doctor directory
type DoctorsResponse struct {
	Doctors []*DoctorView `json:"doctors"`
}

// AvailableSlots lists a doctor's free slots for a day.
func (h *AppointmentHandler) AvailableSlots(c echo.Context) error {
	var query AvailableSlotsQuery
	if err := bind(c, &query); err != nil {
		return err
	}

	slots, err := h.appointmentUC.AvailableSlots(c.Request().Context(), uuid.MustParse(query.DoctorID), query.Date)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, SlotsResponse{Date: query.Date, Slots: slots})
}

// Book creates an appointment in a free slot.
func (h *AppointmentHandler) Book(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req BookAppointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	input := &usecase.BookAppointmentInput{
		DoctorID:  uuid.MustParse(req.DoctorID),
		Date:      req.Date,
		Time:      req.Time,
		Type:      entity.AppointmentType(req.Type),
		Reason:    req.Reason,
		Notes:     req.Notes,
		Duration:  req.Duration,
		Location:  req.Location,
		IPAddress: deliverycontext.GetClientIP(c),
	}
	if req.PatientID != nil {
		patientID := uuid.MustParse(*req.PatientID)
		input.PatientID = &patientID
	}

	appointment, err := h.appointmentUC.Book(c.Request().Context(), actor, input)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, AppointmentResponse{
		Message:     "Appointment booked successfully.",
		Appointment: newAppointmentView(appointment),
	})
}

// List returns the caller's appointments.
func (h *AppointmentHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var query ListAppointmentsQuery
	if err := bind(c, &query); err != nil {
		return err
	}

	appointments, err := h.appointmentUC.List(c.Request().Context(), actor, entity.AppointmentFilter{
		Status: entity.AppointmentStatus(query.Status),
		Date:   query.Date,
		From:   query.From,
		To:     query.To,
		Limit:  query.Limit,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, AppointmentsResponse{Appointments: newAppointmentViews(appointments)})
}

// Upcoming returns the next scheduled or confirmed appointments.
func (h *AppointmentHandler) Upcoming(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	appointments, err := h.appointmentUC.Upcoming(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, AppointmentsResponse{Appointments: newAppointmentViews(appointments)})
}

// Today returns today's agenda of a doctor.
func (h *AppointmentHandler) Today(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	appointments, err := h.appointmentUC.Today(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, AppointmentsResponse{Appointments: newAppointmentViews(appointments)})
}

// Stats returns appointment counters for the caller.
func (h *AppointmentHandler) Stats(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	stats, err := h.appointmentUC.Stats(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, stats)
}

// Get returns one appointment visible to the caller.
func (h *AppointmentHandler) Get(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	appointment, err := h.appointmentUC.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, AppointmentResponse{Appointment: newAppointmentView(appointment)})
}

// Update edits the descriptive fields of an appointment.
func (h *AppointmentHandler) Update(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateAppointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	update := &entity.AppointmentUpdate{
		Reason:   req.Reason,
		Notes:    req.Notes,
		Location: req.Location,
		Duration: req.Duration,
	}
	if req.Type != nil {
		appointmentType := entity.AppointmentType(*req.Type)
		update.Type = &appointmentType
	}

	appointment, err := h.appointmentUC.Update(c.Request().Context(), actor, id, update, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, AppointmentResponse{
		Message:     "Appointment updated.",
		Appointment: newAppointmentView(appointment),
	})
}

// ChangeStatus moves an appointment along its lifecycle.
func (h *AppointmentHandler) ChangeStatus(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ChangeStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	appointment, err := h.appointmentUC.ChangeStatus(c.Request().Context(), actor, id, entity.AppointmentStatus(req.Status), deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, AppointmentResponse{
		Message:     "Appointment status updated.",
		Appointment: newAppointmentView(appointment),
	})
}

// Cancel cancels an appointment and frees its slot.
func (h *AppointmentHandler) Cancel(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	appointment, err := h.appointmentUC.Cancel(c.Request().Context(), actor, id, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, AppointmentResponse{
		Message:     "Appointment cancelled.",
		Appointment: newAppointmentView(appointment),
	})
}

// Delete removes an appointment permanently.
func (h *AppointmentHandler) Delete(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.appointmentUC.Delete(c.Request().Context(), actor, id, deliverycontext.GetClientIP(c)); err != nil {
		return err
	}

	return response.Message(c, "Appointment deleted.")
}

// ListDoctors returns the active doctors that can be booked.
func (h *AppointmentHandler) ListDoctors(c echo.Context) error {
	doctors, err := h.appointmentUC.ListDoctors(c.Request().Context())
	if err != nil {
		return err
	}

	views := make([]*DoctorView, 0, len(doctors))
	for _, d := range doctors {
		views = append(views, &DoctorView{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName, Specialty: d.Specialty})
	}

	return response.Success(c, http.StatusOK, DoctorsResponse{Doctors: views})
}
