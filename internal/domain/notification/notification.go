package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

// Status represents the delivery status of a notification.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCannotRetry       = errors.New("cannot retry notification")
	ErrDeliveryFailed    = errors.New("delivery failed")
)

const (
	defaultMaxRetries = 5
	backoffBase       = 30 * time.Second
)

// Notification is one out-of-band delivery for a ledger entry, targeted at a
// participant who was not connected to the session's room when the entry
// committed. The (SessionID, Sequence, RecipientID) triple is unique, so a
// retried enqueue or dispatch never duplicates a notification for the same
// entry.
type Notification struct {
	ID             int64              `json:"id"`
	NotificationID uuid.UUID          `json:"notificationId"`
	SessionID      uuid.UUID          `json:"sessionId"`
	Sequence       int64              `json:"sequence"`
	RecipientID    uuid.UUID          `json:"recipientId"`
	Kind           negotiation.Kind   `json:"kind"`
	Summary        string             `json:"summary"`
	Amount         *float64           `json:"amount,omitempty"`
	SessionStatus  negotiation.Status `json:"sessionStatus"`
	Status         Status             `json:"status"`
	RetryCount     int                `json:"retryCount"`
	MaxRetries     int                `json:"maxRetries"`
	LastError      *string            `json:"lastError,omitempty"`
	NextAttemptAt  time.Time          `json:"nextAttemptAt"`
	TraceID        string             `json:"traceId"`
	CreatedAt      time.Time          `json:"createdAt"`
	SentAt         *time.Time         `json:"sentAt,omitempty"`
	DeliveredAt    *time.Time         `json:"deliveredAt,omitempty"`
	FailedAt       *time.Time         `json:"failedAt,omitempty"`
}

// New builds a pending notification for one ledger entry.
func New(session *negotiation.Session, entry *negotiation.Entry, recipientID uuid.UUID) *Notification {
	now := time.Now().UTC()
	return &Notification{
		NotificationID: uuid.New(),
		SessionID:      session.SessionID,
		Sequence:       entry.Sequence,
		RecipientID:    recipientID,
		Kind:           entry.Kind,
		Summary:        summarize(entry),
		Amount:         entry.Amount,
		SessionStatus:  session.Status,
		Status:         StatusPending,
		MaxRetries:     defaultMaxRetries,
		NextAttemptAt:  now,
		TraceID:        session.TraceID,
		CreatedAt:      now,
	}
}

func summarize(entry *negotiation.Entry) string {
	switch entry.Kind {
	case negotiation.KindOffer, negotiation.KindCounterOffer:
		return fmt.Sprintf("new offer: %.2f", *entry.Amount)
	case negotiation.KindAccept:
		return "offer accepted"
	case negotiation.KindReject:
		return "offer rejected"
	case negotiation.KindClose:
		return "negotiation closed"
	default:
		return "new message"
	}
}

// CanTransitionTo checks if a transition to the target status is valid.
func (n *Notification) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:   {StatusSent, StatusFailed, StatusExpired},
		StatusSent:      {StatusDelivered, StatusFailed},
		StatusDelivered: {},
		StatusFailed:    {StatusSent, StatusExpired},
		StatusExpired:   {},
	}
	for _, s := range transitions[n.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// MarkSent records that a delivery attempt is starting. The transition is
// persisted before the attempt so a crash cannot double-send silently.
func (n *Notification) MarkSent() error {
	if !n.CanTransitionTo(StatusSent) {
		return ErrInvalidTransition
	}
	n.Status = StatusSent
	now := time.Now().UTC()
	n.SentAt = &now
	return nil
}

// MarkDelivered records a successful delivery.
func (n *Notification) MarkDelivered() error {
	if !n.CanTransitionTo(StatusDelivered) {
		return ErrInvalidTransition
	}
	n.Status = StatusDelivered
	now := time.Now().UTC()
	n.DeliveredAt = &now
	return nil
}

// MarkFailed records a failed attempt and schedules the next one with
// exponential backoff. When retries are exhausted the notification expires.
func (n *Notification) MarkFailed(errMsg string) error {
	if !n.CanTransitionTo(StatusFailed) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	n.FailedAt = &now
	n.LastError = &errMsg
	n.RetryCount++
	if n.RetryCount >= n.MaxRetries {
		n.Status = StatusExpired
		return nil
	}
	n.Status = StatusFailed
	n.NextAttemptAt = now.Add(backoffBase << (n.RetryCount - 1))
	return nil
}

// CanRetry reports whether another attempt may be scheduled.
func (n *Notification) CanRetry() bool {
	return n.Status == StatusFailed && n.RetryCount < n.MaxRetries
}

// IsTerminal returns true once no further attempts will be made.
func (n *Notification) IsTerminal() bool {
	return n.Status == StatusDelivered || n.Status == StatusExpired
}
