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

// PrescriptionHandlerParams holds dependencies for PrescriptionHandler, injected by Fx.
type PrescriptionHandlerParams struct {
	fx.In

	PrescriptionUC usecase.PrescriptionUsecase
	Logger         *slog.Logger
}

// PrescriptionHandler serves medication orders.
type PrescriptionHandler struct {
	prescriptionUC usecase.PrescriptionUsecase
	logger         *slog.Logger
}

// NewPrescriptionHandler is the constructor for PrescriptionHandler.
func NewPrescriptionHandler(params PrescriptionHandlerParams) *PrescriptionHandler {
	return &PrescriptionHandler{
		prescriptionUC: params.PrescriptionUC,
		logger:         params.Logger,
	}
}

// ListPrescriptionsQuery represents the filters of the prescription listing
type ListPrescriptionsQuery struct {
	Status    string `query:"status" json:"status" validate:"omitempty,oneof=active completed cancelled expired"`
	PatientID string `query:"patient_id" json:"patient_id" validate:"omitempty,uuid"`
	Limit     int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=500"`
}

// CreatePrescriptionRequest represents the request body for a new prescription
type CreatePrescriptionRequest struct {
	PatientID    string `json:"patient_id" validate:"required,uuid"`
	Medication   string `json:"medication" validate:"required,max=200"`
	Dosage       string `json:"dosage" validate:"required,max=100"`
	Frequency    string `json:"frequency" validate:"required,max=100"`
	StartDate    string `json:"start_date" validate:"omitempty,date"`
	EndDate      string `json:"end_date" validate:"omitempty,date"`
	RefillsTotal int    `json:"refills_total" validate:"min=0,max=12"`
	Pharmacy     string `json:"pharmacy" validate:"max=200"`
	Instructions string `json:"instructions" validate:"max=2000"`
	SideEffects  string `json:"side_effects" validate:"max=2000"`
}

// UpdatePrescriptionRequest represents the fields a prescribing doctor may change
type UpdatePrescriptionRequest struct {
	Dosage           *string `json:"dosage" validate:"omitempty,min=1,max=100"`
	Frequency        *string `json:"frequency" validate:"omitempty,min=1,max=100"`
	EndDate          *string `json:"end_date" validate:"omitempty,date"`
	RefillsRemaining *int    `json:"refills_remaining" validate:"omitempty,min=0,max=12"`
	Status           *string `json:"status" validate:"omitempty,oneof=active completed cancelled expired"`
	Pharmacy         *string `json:"pharmacy" validate:"omitempty,max=200"`
	Instructions     *string `json:"instructions" validate:"omitempty,max=2000"`
	SideEffects      *string `json:"side_effects" validate:"omitempty,max=2000"`
}

// PrescriptionResponse wraps a single prescription
type PrescriptionResponse struct {
	Message      string            `json:"message,omitempty"`
	Prescription *PrescriptionView `json:"prescription"`
}

// PrescriptionsResponse wraps a prescription list
type PrescriptionsResponse struct {
	Prescriptions []*PrescriptionView `json:"prescriptions"`
}

// List returns prescriptions visible to the caller.
func (h *PrescriptionHandler) List(c echo.Context) error {
	var query ListPrescriptionsQuery
	if err := bind(c, &query); err != nil {
		return err
	}

	filter := entity.PrescriptionFilter{
		Status: entity.PrescriptionStatus(query.Status),
		Limit:  query.Limit,
	}
	if query.PatientID != "" {
		filter.PatientID = uuid.MustParse(query.PatientID)
	}

	return h.list(c, filter)
}

// Active returns the caller's active prescriptions.
func (h *PrescriptionHandler) Active(c echo.Context) error {
	return h.list(c, entity.PrescriptionFilter{Status: entity.PrescriptionStatusActive})
}

func (h *PrescriptionHandler) list(c echo.Context, filter entity.PrescriptionFilter) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	prescriptions, err := h.prescriptionUC.List(c.Request().Context(), actor, filter)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, PrescriptionsResponse{Prescriptions: newPrescriptionViews(prescriptions)})
}

// Get returns one prescription.
func (h *PrescriptionHandler) Get(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	prescription, err := h.prescriptionUC.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, PrescriptionResponse{Prescription: newPrescriptionView(prescription)})
}

// Create writes a prescription for a patient of the calling doctor.
func (h *PrescriptionHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req CreatePrescriptionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	prescription, err := h.prescriptionUC.Create(c.Request().Context(), actor, &usecase.CreatePrescriptionInput{
		PatientID:    uuid.MustParse(req.PatientID),
		Medication:   req.Medication,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		RefillsTotal: req.RefillsTotal,
		Pharmacy:     req.Pharmacy,
		Instructions: req.Instructions,
		SideEffects:  req.SideEffects,
		IPAddress:    deliverycontext.GetClientIP(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, PrescriptionResponse{
		Message:      "Prescription created.",
		Prescription: newPrescriptionView(prescription),
	})
}

// Update edits a prescription.
func (h *PrescriptionHandler) Update(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req UpdatePrescriptionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	update := &entity.PrescriptionUpdate{
		Dosage:           req.Dosage,
		Frequency:        req.Frequency,
		EndDate:          req.EndDate,
		RefillsRemaining: req.RefillsRemaining,
		Pharmacy:         req.Pharmacy,
		Instructions:     req.Instructions,
		SideEffects:      req.SideEffects,
	}
	if req.Status != nil {
		status := entity.PrescriptionStatus(*req.Status)
		update.Status = &status
	}

	prescription, err := h.prescriptionUC.Update(c.Request().Context(), actor, id, update, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, PrescriptionResponse{
		Message:      "Prescription updated.",
		Prescription: newPrescriptionView(prescription),
	})
}

// RequestRefill consumes one refill and notifies the prescribing doctor.
func (h *PrescriptionHandler) RequestRefill(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	prescription, err := h.prescriptionUC.RequestRefill(c.Request().Context(), actor, id, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, PrescriptionResponse{
		Message:      "Refill requested.",
		Prescription: newPrescriptionView(prescription),
	})
}

// Delete removes a prescription.
func (h *PrescriptionHandler) Delete(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.prescriptionUC.Delete(c.Request().Context(), actor, id, deliverycontext.GetClientIP(c)); err != nil {
		return err
	}

	return response.Message(c, "Prescription deleted.")
}
