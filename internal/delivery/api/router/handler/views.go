package handler

import (
	"time"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

// UserView is the public projection of a user. It never carries the password
// hash, the TOTP secret or a reset token.
type UserView struct {
	ID               uuid.UUID   `json:"id"`
	Email            string      `json:"email"`
	FirstName        string      `json:"first_name"`
	LastName         string      `json:"last_name"`
	Role             entity.Role `json:"role"`
	Phone            string      `json:"phone,omitempty"`
	DateOfBirth      string      `json:"date_of_birth,omitempty"`
	Gender           string      `json:"gender,omitempty"`
	Address          string      `json:"address,omitempty"`
	Specialty        string      `json:"specialty,omitempty"`
	LicenseNumber    string      `json:"license_number,omitempty"`
	InsuranceID      string      `json:"insurance_id,omitempty"`
	EmergencyContact string      `json:"emergency_contact,omitempty"`
	EmergencyPhone   string      `json:"emergency_phone,omitempty"`
	TwoFactorEnabled bool        `json:"two_factor_enabled"`
	IsActive         bool        `json:"is_active"`
	LastLogin        *time.Time  `json:"last_login,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// PendingUserView is all a half-authenticated session may learn.
type PendingUserView struct {
	ID    uuid.UUID   `json:"id"`
	Email string      `json:"email"`
	Role  entity.Role `json:"role"`
}

func newUserView(u *entity.User) *UserView {
	if u == nil {
		return nil
	}

	return &UserView{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             u.Role,
		Phone:            u.Phone,
		DateOfBirth:      u.DateOfBirth,
		Gender:           u.Gender,
		Address:          u.Address,
		Specialty:        u.Specialty,
		LicenseNumber:    u.LicenseNumber,
		InsuranceID:      u.InsuranceID,
		EmergencyContact: u.EmergencyContact,
		EmergencyPhone:   u.EmergencyPhone,
		TwoFactorEnabled: u.TwoFactorEnabled,
		IsActive:         u.IsActive,
		LastLogin:        u.LastLogin,
		CreatedAt:        u.CreatedAt,
	}
}

func newUserViews(users []*entity.User) []*UserView {
	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}

	return views
}

// DoctorView is a bookable doctor.
type DoctorView struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Specialty string    `json:"specialty"`
}

// PatientSummaryView is a row of the patient directory.
type PatientSummaryView struct {
	*UserView
	AppointmentCount int64  `json:"appointment_count"`
	LastVisit        string `json:"last_visit,omitempty"`
}

// AppointmentView is an appointment with display names.
type AppointmentView struct {
	ID               uuid.UUID                `json:"id"`
	PatientID        uuid.UUID                `json:"patient_id"`
	DoctorID         uuid.UUID                `json:"doctor_id"`
	Date             string                   `json:"date"`
	Time             string                   `json:"time"`
	Duration         int                      `json:"duration"`
	Type             entity.AppointmentType   `json:"type"`
	Status           entity.AppointmentStatus `json:"status"`
	Reason           string                   `json:"reason,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
	Location         string                   `json:"location"`
	PatientFirstName string                   `json:"patient_first_name,omitempty"`
	PatientLastName  string                   `json:"patient_last_name,omitempty"`
	PatientEmail     string                   `json:"patient_email,omitempty"`
	DoctorFirstName  string                   `json:"doctor_first_name,omitempty"`
	DoctorLastName   string                   `json:"doctor_last_name,omitempty"`
	Specialty        string                   `json:"specialty,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

func newAppointmentView(a *entity.Appointment) *AppointmentView {
	return &AppointmentView{
		ID:               a.ID,
		PatientID:        a.PatientID,
		DoctorID:         a.DoctorID,
		Date:             a.Date,
		Time:             a.Time,
		Duration:         a.Duration,
		Type:             a.Type,
		Status:           a.Status,
		Reason:           a.Reason,
		Notes:            a.Notes,
		Location:         a.Location,
		PatientFirstName: a.PatientFirstName,
		PatientLastName:  a.PatientLastName,
		PatientEmail:     a.PatientEmail,
		DoctorFirstName:  a.DoctorFirstName,
		DoctorLastName:   a.DoctorLastName,
		Specialty:        a.DoctorSpecialty,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func newAppointmentViews(appointments []*entity.Appointment) []*AppointmentView {
	views := make([]*AppointmentView, 0, len(appointments))
	for _, a := range appointments {
		views = append(views, newAppointmentView(a))
	}

	return views
}

// PrescriptionView is a prescription with display names.
type PrescriptionView struct {
	ID               uuid.UUID                 `json:"id"`
	PatientID        uuid.UUID                 `json:"patient_id"`
	DoctorID         uuid.UUID                 `json:"doctor_id"`
	Medication       string                    `json:"medication"`
	Dosage           string                    `json:"dosage"`
	Frequency        string                    `json:"frequency"`
	StartDate        string                    `json:"start_date"`
	EndDate          string                    `json:"end_date,omitempty"`
	RefillsRemaining int                       `json:"refills_remaining"`
	RefillsTotal     int                       `json:"refills_total"`
	Status           entity.PrescriptionStatus `json:"status"`
	Pharmacy         string                    `json:"pharmacy,omitempty"`
	Instructions     string                    `json:"instructions,omitempty"`
	SideEffects      string                    `json:"side_effects,omitempty"`
	PatientFirstName string                    `json:"patient_first_name,omitempty"`
	PatientLastName  string                    `json:"patient_last_name,omitempty"`
	DoctorFirstName  string                    `json:"doctor_first_name,omitempty"`
	DoctorLastName   string                    `json:"doctor_last_name,omitempty"`
	Specialty        string                    `json:"specialty,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func newPrescriptionView(p *entity.Prescription) *PrescriptionView {
	return &PrescriptionView{
		ID:               p.ID,
		PatientID:        p.PatientID,
		DoctorID:         p.DoctorID,
		Medication:       p.Medication,
		Dosage:           p.Dosage,
		Frequency:        p.Frequency,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		RefillsRemaining: p.RefillsRemaining,
		RefillsTotal:     p.RefillsTotal,
		Status:           p.Status,
		Pharmacy:         p.Pharmacy,
		Instructions:     p.Instructions,
		SideEffects:      p.SideEffects,
		PatientFirstName: p.PatientFirstName,
		PatientLastName:  p.PatientLastName,
		DoctorFirstName:  p.DoctorFirstName,
		DoctorLastName:   p.DoctorLastName,
		Specialty:        p.DoctorSpecialty,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func newPrescriptionViews(prescriptions []*entity.Prescription) []*PrescriptionView {
	views := make([]*PrescriptionView, 0, len(prescriptions))
	for _, p := range prescriptions {
		views = append(views, newPrescriptionView(p))
	}

	return views
}

// LabResultView is one lab result.
type LabResultView struct {
	ID              uuid.UUID              `json:"id"`
	PatientID       uuid.UUID              `json:"patient_id"`
	DoctorID        uuid.UUID              `json:"doctor_id"`
	TestName        string                 `json:"test_name"`
	Category        string                 `json:"category,omitempty"`
	ResultValue     string                 `json:"result_value,omitempty"`
	ReferenceRange  string                 `json:"reference_range,omitempty"`
	Unit            string                 `json:"unit,omitempty"`
	Status          entity.LabResultStatus `json:"status"`
	Notes           string                 `json:"notes,omitempty"`
	TestDate        string                 `json:"test_date"`
	ResultDate      string                 `json:"result_date,omitempty"`
	DoctorFirstName string                 `json:"doctor_first_name,omitempty"`
	DoctorLastName  string                 `json:"doctor_last_name,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func newLabResultView(r *entity.LabResult) *LabResultView {
	return &LabResultView{
		ID:              r.ID,
		PatientID:       r.PatientID,
		DoctorID:        r.DoctorID,
		TestName:        r.TestName,
		Category:        r.Category,
		ResultValue:     r.ResultValue,
		ReferenceRange:  r.ReferenceRange,
		Unit:            r.Unit,
		Status:          r.Status,
		Notes:           r.Notes,
		TestDate:        r.TestDate,
		ResultDate:      r.ResultDate,
		DoctorFirstName: r.DoctorFirstName,
		DoctorLastName:  r.DoctorLastName,
		CreatedAt:       r.CreatedAt,
	}
}

func newLabResultViews(results []*entity.LabResult) []*LabResultView {
	views := make([]*LabResultView, 0, len(results))
	for _, r := range results {
		views = append(views, newLabResultView(r))
	}

	return views
}

// NotificationView is one in-app notification.
type NotificationView struct {
	ID        uuid.UUID               `json:"id"`
	Type      entity.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	Link      string                  `json:"link,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// AuditEntryView is one audit log row with the actor's name.
type AuditEntryView struct {
	ID         uuid.UUID          `json:"id"`
	UserID     *uuid.UUID         `json:"user_id,omitempty"`
	Action     entity.AuditAction `json:"action"`
	Resource   string             `json:"resource,omitempty"`
	ResourceID *uuid.UUID         `json:"resource_id,omitempty"`
	Details    string             `json:"details,omitempty"`
	IPAddress  string             `json:"ip_address,omitempty"`
	Email      string             `json:"email,omitempty"`
	FirstName  string             `json:"first_name,omitempty"`
	LastName   string             `json:"last_name,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}
