package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bargain-hub/bargain-hub/internal/domain/notification"
)

// WebhookSender posts notifications to an external push gateway. A non-2xx
// response counts as a failed attempt and feeds the retry schedule.
type WebhookSender struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

func NewWebhookSender(url string, timeout time.Duration, logger zerolog.Logger) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "webhook_sender").Logger(),
	}
}

func (s *WebhookSender) Send(ctx context.Context, n *notification.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: gateway returned %d", notification.ErrDeliveryFailed, resp.StatusCode)
	}

	s.logger.Debug().
		Str("notification_id", n.NotificationID.String()).
		Str("recipient_id", n.RecipientID.String()).
		Msg("notification delivered")
	return nil
}

// LogSender writes notifications to the log instead of an external gateway.
// Used when no gateway URL is configured, typically in development.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log_sender").Logger()}
}

func (s *LogSender) Send(ctx context.Context, n *notification.Notification) error {
	s.logger.Info().
		Str("notification_id", n.NotificationID.String()).
		Str("session_id", n.SessionID.String()).
		Int64("sequence", n.Sequence).
		Str("recipient_id", n.RecipientID.String()).
		Str("summary", n.Summary).
		Msg("notification delivered")
	return nil
}
