package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

const keyPrefix = "bargain:"

// SummaryCache caches per-participant session listings. Failures degrade to a
// cache miss; the ledger stays authoritative.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewSummaryCache(addr, password string, db int, ttl time.Duration, logger zerolog.Logger) *SummaryCache {
	return &SummaryCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl:    ttl,
		logger: logger.With().Str("component", "summary_cache").Logger(),
	}
}

func participantKey(userID uuid.UUID) string {
	return fmt.Sprintf("%sparticipant:%s", keyPrefix, userID)
}

func (c *SummaryCache) GetParticipant(ctx context.Context, userID uuid.UUID) ([]*negotiation.Session, bool) {
	data, err := c.client.Get(ctx, participantKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("cache read failed")
		}
		return nil, false
	}
	var sessions []*negotiation.Session
	if err := json.Unmarshal([]byte(data), &sessions); err != nil {
		c.logger.Warn().Err(err).Msg("cache entry corrupt, dropping")
		c.client.Del(ctx, participantKey(userID))
		return nil, false
	}
	return sessions, true
}

func (c *SummaryCache) SetParticipant(ctx context.Context, userID uuid.UUID, sessions []*negotiation.Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, participantKey(userID), data, c.ttl).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = participantKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Ping verifies connectivity at startup.
func (c *SummaryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *SummaryCache) Close() error {
	return c.client.Close()
}
