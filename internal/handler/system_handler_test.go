package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newHealthRouter(t *testing.T, db Pinger) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	h := NewSystemHandler(db, rdb, zerolog.Nop())
	r := gin.New()
	r.GET("/health", h.Health)
	return r, mr
}

func TestHealthOK(t *testing.T) {
	r, mr := newHealthRouter(t, fakePinger{})
	_, err := mr.RPush(config.WorkerKey.AttemptEventsQueue, "a", "b")
	require.NoError(t, err)

	w, env := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var report healthReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, int64(2), report.AuditQueue)
}

func TestHealthPostgresDown(t *testing.T) {
	r, _ := newHealthRouter(t, fakePinger{err: errors.New("connection refused")})

	w, env := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report healthReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "down", report.Postgres)
	assert.Equal(t, "ok", report.Redis)
}

func TestHealthRedisDown(t *testing.T) {
	r, mr := newHealthRouter(t, fakePinger{})
	mr.Close()

	w, env := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report healthReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "down", report.Redis)
}
