package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for notifications.
type Repository interface {
	// Create inserts the notification; a duplicate (sessionId, sequence,
	// recipientId) is a silent no-op so enqueue stays idempotent.
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, notificationID uuid.UUID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	// ListDue returns PENDING and retryable FAILED notifications whose
	// next attempt time has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*Notification, error)
}

// Sender delivers one notification out of band. Implementations must be safe
// to call more than once per notification.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}
