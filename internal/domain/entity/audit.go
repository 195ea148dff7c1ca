package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a security-relevant action.
type AuditAction string

const (
	AuditActionRegister             AuditAction = "REGISTER"
	AuditActionLogin                AuditAction = "LOGIN"
	AuditActionLoginFailed          AuditAction = "LOGIN_FAILED"
	AuditActionLogin2FAPending      AuditAction = "LOGIN_2FA_PENDING"
	AuditActionLogin2FAVerified     AuditAction = "LOGIN_2FA_VERIFIED"
	AuditActionLogin2FAFailed       AuditAction = "LOGIN_2FA_FAILED"
	AuditAction2FAEnabled           AuditAction = "2FA_ENABLED"
	AuditAction2FADisabled          AuditAction = "2FA_DISABLED"
	AuditActionPasswordResetRequest AuditAction = "PASSWORD_RESET_REQUEST"
	AuditActionPasswordReset        AuditAction = "PASSWORD_RESET"
	AuditActionPasswordChanged      AuditAction = "PASSWORD_CHANGED"
	AuditActionProfileUpdated       AuditAction = "PROFILE_UPDATED"
	AuditActionLogout               AuditAction = "LOGOUT"
	AuditActionSessionExpired       AuditAction = "SESSION_EXPIRED"
	AuditActionAccessDenied         AuditAction = "ACCESS_DENIED"
	AuditActionRateLimitHit         AuditAction = "RATE_LIMIT_HIT"

	AuditActionCreateAppointment AuditAction = "CREATE_APPOINTMENT"
	AuditActionUpdateAppointment AuditAction = "UPDATE_APPOINTMENT"
	AuditActionCancelAppointment AuditAction = "CANCEL_APPOINTMENT"
	AuditActionDeleteAppointment AuditAction = "DELETE_APPOINTMENT"

	AuditActionViewPatientRecords AuditAction = "VIEW_PATIENT_RECORDS"
	AuditActionCreateLabResult    AuditAction = "CREATE_LAB_RESULT"
	AuditActionCreatePrescription AuditAction = "CREATE_PRESCRIPTION"
	AuditActionUpdatePrescription AuditAction = "UPDATE_PRESCRIPTION"
	AuditActionRefillRequest      AuditAction = "REFILL_REQUEST"
	AuditActionDeletePrescription AuditAction = "DELETE_PRESCRIPTION"

	AuditActionUserActivated   AuditAction = "USER_ACTIVATED"
	AuditActionUserDeactivated AuditAction = "USER_DEACTIVATED"
)

// Audit resource names.
const (
	AuditResourceUsers         = "users"
	AuditResourceAppointments  = "appointments"
	AuditResourcePrescriptions = "prescriptions"
	AuditResourceLabResults    = "lab_results"
)

// AuditEntry is one append-only record of a security-relevant action.
type AuditEntry struct {
	ID         uuid.UUID
	UserID     *uuid.UUID // nil for anonymous actors, e.g. a rate-limited source.
	Action     AuditAction
	Resource   string
	ResourceID *uuid.UUID
	Details    string
	IPAddress  string
	CreatedAt  time.Time

	// Populated by joined reads for the administrator's log view.
	UserEmail     string
	UserFirstName string
	UserLastName  string
}
