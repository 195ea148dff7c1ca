package handler

import (
	"log/slog"
	"net/http"

	"healthbridge/internal/delivery/api/response"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	"healthbridge/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// PatientHandlerParams holds dependencies for PatientHandler, injected by Fx.
type PatientHandlerParams struct {
	fx.In

	PatientUC usecase.PatientUsecase
	Logger    *slog.Logger
}

// PatientHandler serves the patient directory and clinical records.
type PatientHandler struct {
	patientUC usecase.PatientUsecase
	logger    *slog.Logger
}

// NewPatientHandler is the constructor for PatientHandler.
func NewPatientHandler(params PatientHandlerParams) *PatientHandler {
	return &PatientHandler{
		patientUC: params.PatientUC,
		logger:    params.Logger,
	}
}

// CreateLabResultRequest represents the request body for recording a lab result
type CreateLabResultRequest struct {
	TestName       string `json:"test_name" validate:"required,max=200"`
	Category       string `json:"category" validate:"max=100"`
	ResultValue    string `json:"result_value" validate:"max=200"`
	ReferenceRange string `json:"reference_range" validate:"max=200"`
	Unit           string `json:"unit" validate:"max=50"`
	Status         string `json:"status" validate:"omitempty,oneof=normal abnormal critical pending"`
	Notes          string `json:"notes" validate:"max=2000"`
	TestDate       string `json:"test_date" validate:"required,date"`
	ResultDate     string `json:"result_date" validate:"omitempty,date"`
}

// PatientsResponse wraps the patient directory
type PatientsResponse struct {
	Patients []*PatientSummaryView `json:"patients"`
}

// PatientRecordsResponse is a patient's complete chart
type PatientRecordsResponse struct {
	Patient       *UserView           `json:"patient"`
	Appointments  []*AppointmentView  `json:"appointments"`
	Prescriptions []*PrescriptionView `json:"prescriptions"`
	LabResults    []*LabResultView    `json:"lab_results"`
}

// LabResultsResponse wraps a list of lab results
type LabResultsResponse struct {
	LabResults []*LabResultView `json:"lab_results"`
}

// LabResultResponse wraps a single lab result
type LabResultResponse struct {
	Message   string         `json:"message,omitempty"`
	LabResult *LabResultView `json:"lab_result"`
}

// List returns the patients visible to a doctor or administrator.
func (h *PatientHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	summaries, err := h.patientUC.List(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	views := make([]*PatientSummaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, &PatientSummaryView{
			UserView:         newUserView(s.Patient),
			AppointmentCount: s.AppointmentCount,
			LastVisit:        s.LastVisit,
		})
	}

	return response.Success(c, http.StatusOK, PatientsResponse{Patients: views})
}

// Get returns a patient's profile.
func (h *PatientHandler) Get(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	patient, err := h.patientUC.Get(c.Request().Context(), actor, patientID, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, UserResponse{User: newUserView(patient)})
}

// Records returns a patient's complete chart.
func (h *PatientHandler) Records(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	records, err := h.patientUC.Records(c.Request().Context(), actor, patientID, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, PatientRecordsResponse{
		Patient:       newUserView(records.Patient),
		Appointments:  newAppointmentViews(records.Appointments),
		Prescriptions: newPrescriptionViews(records.Prescriptions),
		LabResults:    newLabResultViews(records.LabResults),
	})
}

// LabResults returns a patient's lab results.
func (h *PatientHandler) LabResults(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	results, err := h.patientUC.LabResults(c.Request().Context(), actor, patientID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, LabResultsResponse{LabResults: newLabResultViews(results)})
}

// AddLabResult records a lab result for a patient.
func (h *PatientHandler) AddLabResult(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req CreateLabResultRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.patientUC.AddLabResult(c.Request().Context(), actor, patientID, &usecase.CreateLabResultInput{
		TestName:       req.TestName,
		Category:       req.Category,
		ResultValue:    req.ResultValue,
		ReferenceRange: req.ReferenceRange,
		Unit:           req.Unit,
		Status:         entity.LabResultStatus(req.Status),
		Notes:          req.Notes,
		TestDate:       req.TestDate,
		ResultDate:     req.ResultDate,
		IPAddress:      deliverycontext.GetClientIP(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, LabResultResponse{
		Message:   "Lab result added.",
		LabResult: newLabResultView(result),
	})
}
