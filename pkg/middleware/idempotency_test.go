package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	redisclient "github.com/richxcame/fraud-investigator/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replayStore struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newReplayStore() *replayStore {
	return &replayStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *replayStore) SetWithExpiration(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *replayStore) GetString(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", redisclient.ErrNil
	}
	return v, nil
}

func (s *replayStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// newIdempotentRouter counts handler runs; the first run per body succeeds and
// later runs conflict, like a duplicate transaction insert
func newIdempotentRouter(store redisclient.ClientInterface) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)
	runs := 0
	seen := map[string]bool{}
	router := gin.New()
	router.POST("/transactions", Idempotency(store, time.Hour), func(c *gin.Context) {
		runs++
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		if seen[body["txn_id"]] {
			c.JSON(http.StatusConflict, gin.H{"error": "already ingested"})
			return
		}
		seen[body["txn_id"]] = true
		c.JSON(http.StatusCreated, gin.H{"txn_id": body["txn_id"], "run": runs})
	})
	return router, &runs
}

func postWithKey(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysFirstResponse(t *testing.T) {
	store := newReplayStore()
	router, runs := newIdempotentRouter(store)

	first := postWithKey(router, "retry-1", `{"txn_id":"T1"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	again := postWithKey(router, "retry-1", `{"txn_id":"T1"}`)

	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, "true", again.Header().Get(IdempotentReplayedHeader))
	assert.Contains(t, again.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, *runs)
	assert.Equal(t, time.Hour, store.ttls["idempotency:anon:/transactions:retry-1"])
}

func TestIdempotency_WithoutKeyRunsHandler(t *testing.T) {
	router, runs := newIdempotentRouter(newReplayStore())

	assert.Equal(t, http.StatusCreated, postWithKey(router, "", `{"txn_id":"T1"}`).Code)
	assert.Equal(t, http.StatusConflict, postWithKey(router, "", `{"txn_id":"T1"}`).Code)
	assert.Equal(t, 2, *runs)
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	router, runs := newIdempotentRouter(newReplayStore())

	require.Equal(t, http.StatusCreated, postWithKey(router, "k", `{"txn_id":"T1"}`).Code)
	w := postWithKey(router, "k", `{"txn_id":"T2"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, *runs)
}

func TestIdempotency_FailuresAreNotStored(t *testing.T) {
	store := newReplayStore()
	router, runs := newIdempotentRouter(store)

	require.Equal(t, http.StatusCreated, postWithKey(router, "", `{"txn_id":"T1"}`).Code)
	require.Equal(t, http.StatusConflict, postWithKey(router, "k", `{"txn_id":"T1"}`).Code)

	assert.Empty(t, store.data)
	assert.Equal(t, http.StatusConflict, postWithKey(router, "k", `{"txn_id":"T1"}`).Code)
	assert.Equal(t, 3, *runs)
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	router, runs := newIdempotentRouter(newReplayStore())

	w := postWithKey(router, strings.Repeat("k", maxIdempotencyKeyLen+1), `{"txn_id":"T1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, *runs)
}

func TestIdempotency_StoreErrorFailsOpen(t *testing.T) {
	store := newReplayStore()
	store.getErr = errors.New("connection refused")
	router, runs := newIdempotentRouter(store)

	w := postWithKey(router, "k", `{"txn_id":"T1"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, *runs)
}

func TestIdempotency_NilStorePassesThrough(t *testing.T) {
	router, runs := newIdempotentRouter(nil)

	assert.Equal(t, http.StatusCreated, postWithKey(router, "k", `{"txn_id":"T1"}`).Code)
	assert.Equal(t, http.StatusConflict, postWithKey(router, "k", `{"txn_id":"T1"}`).Code)
	assert.Equal(t, 2, *runs)
}

func TestIdempotency_ScopedPerCaller(t *testing.T) {
	store := newReplayStore()
	token, err := IssueToken(testSecret, "analyst-7", RoleAnalyst, time.Hour)
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/transactions", AuthMiddleware(testSecret), Idempotency(store, time.Hour), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(IdempotencyKeyHeader, "k")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, store.data, "idempotency:user:analyst-7:/transactions:k")
}
