package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

const acceptedChannel = keyPrefix + "accepted"

// OrderEventPublisher announces accepted negotiations on a redis channel for
// the order service to pick up.
type OrderEventPublisher struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewOrderEventPublisher(addr, password string, db int, logger zerolog.Logger) *OrderEventPublisher {
	return &OrderEventPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		logger: logger.With().Str("component", "order_events").Logger(),
	}
}

func (p *OrderEventPublisher) NegotiationAccepted(ctx context.Context, event *negotiation.AcceptedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, acceptedChannel, payload).Err(); err != nil {
		return err
	}
	p.logger.Info().
		Str("session_id", event.SessionID.String()).
		Float64("final_price", event.FinalPrice).
		Msg("accepted negotiation announced")
	return nil
}

func (p *OrderEventPublisher) Close() error {
	return p.client.Close()
}
