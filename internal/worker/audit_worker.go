package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventSink is where the audit worker writes drained events.
type EventSink interface {
	CopyEvents(ctx context.Context, events []model.AttemptEvent) error
	InsertEvent(ctx context.Context, ev model.AttemptEvent) error
}

// AuditWorker drains the attempt events queue into PostgreSQL in batches.
type AuditWorker struct {
	sink EventSink
	rdb  *redis.Client
	log  zerolog.Logger

	// backoff is how long to pause after requeueing or a Redis error.
	backoff time.Duration
}

func NewAuditWorker(sink EventSink, rdb *redis.Client, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		sink:    sink,
		rdb:     rdb,
		log:     log.With().Str("component", "audit_worker").Logger(),
		backoff: 2 * time.Second,
	}
}

// Start consumes the queue until ctx is cancelled, then flushes what it holds.
func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	buffer := make([]model.AttemptEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.AttemptEventsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			w.sleep(ctx, w.backoff)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var ev model.AttemptEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil || ev.AttemptID == uuid.Nil {
			// Malformed payloads can never succeed; drop them.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed attempt event")
			continue
		}

		if len(buffer) == 0 {
			lastFlushTime = time.Now()
		}
		buffer = append(buffer, ev)
	}
}

// flushSafe tries a COPY, then row-by-row inserts, then requeues what still failed.
func (w *AuditWorker) flushSafe(ctx context.Context, batch []model.AttemptEvent) {
	err := w.sink.CopyEvents(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Attempt events persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
	w.fallbackInsert(ctx, batch)
}

func (w *AuditWorker) fallbackInsert(ctx context.Context, batch []model.AttemptEvent) {
	var requeueList []model.AttemptEvent
	for _, ev := range batch {
		if err := w.sink.InsertEvent(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("attempt_id", ev.AttemptID.String()).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, ev)
		}
	}
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AuditWorker) requeue(ctx context.Context, items []model.AttemptEvent) {
	// A shutdown flush runs on a cancelled parent; the push must still go out.
	pushCtx := context.WithoutCancel(ctx)

	pipe := w.rdb.Pipeline()
	for _, ev := range items {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		pipe.RPush(pushCtx, config.WorkerKey.AttemptEventsQueue, data)
	}
	if _, err := pipe.Exec(pushCtx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue attempt events. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed events back to Redis")
	w.sleep(ctx, w.backoff)
}

func (w *AuditWorker) shutdown(buffer []model.AttemptEvent) {
	w.log.Info().Int("buffered", len(buffer)).Msg("AuditWorker stopping, flushing remaining buffer")
	if len(buffer) == 0 {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flushSafe(shutdownCtx, buffer)
}

func (w *AuditWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
