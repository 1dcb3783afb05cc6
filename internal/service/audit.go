package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// AuditPublisher receives attempt transitions after they are committed.
// Publishing is best-effort and never fails the caller.
type AuditPublisher interface {
	Publish(ctx context.Context, ev model.AttemptEvent)
}

// RedisAuditPublisher queues events for the audit worker.
type RedisAuditPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisAuditPublisher creates a new RedisAuditPublisher.
func NewRedisAuditPublisher(rdb *redis.Client, log zerolog.Logger) *RedisAuditPublisher {
	return &RedisAuditPublisher{
		rdb: rdb,
		log: log.With().Str("component", "audit_publisher").Logger(),
	}
}

// Publish pushes the event onto the attempt events queue.
func (p *RedisAuditPublisher) Publish(ctx context.Context, ev model.AttemptEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to encode attempt event")
		return
	}
	// The transition is already committed; a cancelled request must not drop it.
	ctx = context.WithoutCancel(ctx)
	if err := p.rdb.RPush(ctx, config.WorkerKey.AttemptEventsQueue, payload).Err(); err != nil {
		p.log.Warn().Err(err).
			Str("attempt_id", ev.AttemptID.String()).
			Str("type", string(ev.Type)).
			Msg("Failed to queue attempt event")
	}
}
