// Package notification stores in-app notifications for users and turns
// medication request events into them.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type is the notification_type of a stored notification.
type Type string

const (
	TypeRequestCreated   Type = "request_created"
	TypeRequestApproved  Type = "request_approved"
	TypeRequestRejected  Type = "request_rejected"
	TypeRequestCancelled Type = "request_cancelled"
	TypeRequestInTransit Type = "request_in_transit"
	TypeRequestDelivered Type = "request_delivered"
)

// EntityMedicationRequest is the related_entity_type of request notifications.
const EntityMedicationRequest = "medication_request"

type Notification struct {
	ID                uuid.UUID  `json:"id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	Type              Type       `json:"notification_type"`
	RelatedEntityType *string    `json:"related_entity_type"`
	RelatedEntityID   *string    `json:"related_entity_id"`
	IsRead            bool       `json:"is_read"`
	ReadAt            *time.Time `json:"read_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Message is what a sender hands to Send.
type Message struct {
	UserID            string
	Title             string
	Message           string
	Type              Type
	RelatedEntityType string
	RelatedEntityID   string
}

// Store persists notifications. Every read and write is scoped to a user;
// another user's notification is reported as not found.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID, at time.Time) (*Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}
