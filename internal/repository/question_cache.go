package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// CachedQuestionBank keeps the public projection of questions in Redis.
// Selection and answer keys always come from the underlying bank.
type CachedQuestionBank struct {
	bank QuestionBank
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedQuestionBank wraps bank with a Redis read-through cache.
func NewCachedQuestionBank(bank QuestionBank, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedQuestionBank {
	return &CachedQuestionBank{
		bank: bank,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "question_cache").Logger(),
	}
}

// SelectQuestions delegates to the underlying bank.
func (c *CachedQuestionBank) SelectQuestions(ctx context.Context, assessmentID uuid.UUID, count int) ([]model.QuestionRef, error) {
	return c.bank.SelectQuestions(ctx, assessmentID, count)
}

// ResolveCorrectKeys is never cached: a corrected key must apply to the next submission.
func (c *CachedQuestionBank) ResolveCorrectKeys(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]model.OptionKey, error) {
	return c.bank.ResolveCorrectKeys(ctx, questionIDs)
}

// PublicQuestions serves hits from Redis and fills misses from the bank.
func (c *CachedQuestionBank) PublicQuestions(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]model.PublicQuestion, error) {
	out := make(map[uuid.UUID]model.PublicQuestion, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		keys[i] = config.CacheKey.PublicQuestionKey(id)
	}

	missing := questionIDs
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn().Err(err).Msg("Question cache read failed, falling back to database")
	} else {
		missing = missing[:0:0]
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, questionIDs[i])
				continue
			}
			var q model.PublicQuestion
			if err := json.Unmarshal([]byte(s), &q); err != nil {
				missing = append(missing, questionIDs[i])
				continue
			}
			out[questionIDs[i]] = q
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.bank.PublicQuestions(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for id, q := range loaded {
		out[id] = q
		data, err := json.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, config.CacheKey.PublicQuestionKey(id), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn().Err(err).Int("count", len(loaded)).Msg("Question cache write failed")
	}

	return out, nil
}
