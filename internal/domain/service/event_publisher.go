package service

import (
	"context"
)

// PortalEventType names an event sent to the notifier worker.
type PortalEventType string

const (
	// EventAppointmentBooked is published after a booking commits.
	EventAppointmentBooked PortalEventType = "appointment.booked"
	// EventAppointmentCancelled is published after a cancellation commits.
	EventAppointmentCancelled PortalEventType = "appointment.cancelled"
	// EventPasswordResetRequested carries the reset token for out-of-band delivery.
	EventPasswordResetRequested PortalEventType = "password_reset.requested"
)

// PortalEvent is an event to be processed by the notifier worker
type PortalEvent struct {
	RequestID string            `json:"request_id,omitempty"` // For distributed tracing
	Type      PortalEventType   `json:"type"`
	UserID    string            `json:"user_id"`
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// Publish sends an event for async processing
	Publish(ctx context.Context, event *PortalEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
