package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bargain-hub/bargain-hub/internal/domain/notification"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, notification_id, session_id, sequence, recipient_id,
	kind, summary, amount, session_status, status, retry_count, max_retries,
	last_error, next_attempt_at, trace_id, created_at, sent_at, delivered_at, failed_at`

// Create inserts the notification. The unique key on
// (session_id, sequence, recipient_id) makes a duplicate enqueue a no-op.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications
		(notification_id, session_id, sequence, recipient_id, kind, summary, amount,
		 session_status, status, retry_count, max_retries, last_error, next_attempt_at,
		 trace_id, created_at, sent_at, delivered_at, failed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (session_id, sequence, recipient_id) DO NOTHING
	`, n.NotificationID, n.SessionID, n.Sequence, n.RecipientID, n.Kind, n.Summary, n.Amount,
		n.SessionStatus, n.Status, n.RetryCount, n.MaxRetries, n.LastError, n.NextAttemptAt,
		n.TraceID, n.CreatedAt, n.SentAt, n.DeliveredAt, n.FailedAt)
	return err
}

func (r *NotificationRepository) GetByID(ctx context.Context, notificationID uuid.UUID) (*notification.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications WHERE notification_id=$1
	`, notificationID)
	return scanNotification(row)
}

func (r *NotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status=$1, retry_count=$2, last_error=$3, next_attempt_at=$4,
		    sent_at=$5, delivered_at=$6, failed_at=$7
		WHERE notification_id=$8
	`, n.Status, n.RetryCount, n.LastError, n.NextAttemptAt, n.SentAt, n.DeliveredAt, n.FailedAt, n.NotificationID)
	return err
}

func (r *NotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status IN ('PENDING','FAILED') AND retry_count < max_retries AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*notification.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func collectNotifications(rows pgx.Rows) ([]*notification.Notification, error) {
	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var n notification.Notification
	if err := row.Scan(&n.ID, &n.NotificationID, &n.SessionID, &n.Sequence, &n.RecipientID,
		&n.Kind, &n.Summary, &n.Amount, &n.SessionStatus, &n.Status, &n.RetryCount, &n.MaxRetries,
		&n.LastError, &n.NextAttemptAt, &n.TraceID, &n.CreatedAt, &n.SentAt, &n.DeliveredAt, &n.FailedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}
