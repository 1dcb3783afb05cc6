package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PublicQuestionKey returns the cache key for a question's student-facing projection.
// The answer key is never stored under this key.
func (r *CacheKeyStruct) PublicQuestionKey(questionID uuid.UUID) string {
	return fmt.Sprintf("question:%s:public", questionID)
}

// RateLimitKey returns the key used to bucket requests of one identity.
func (r *CacheKeyStruct) RateLimitKey(ownerID int) string {
	return fmt.Sprintf("ratelimit:owner:%d", ownerID)
}

var CacheKey = NewCacheKeyStruct()
