package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	redisclient "github.com/richxcame/fraud-investigator/pkg/redis"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client chosen key of a retryable request
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader marks a response served from the replay store
	IdempotentReplayedHeader = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	idempotencyPrefix     = "idempotency:"
	maxIdempotencyKeyLen  = 128
)

// idempotencyEntry is the stored outcome of a request
type idempotencyEntry struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// recordingWriter tees the response body so it can be stored
type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored 2xx response of a POST carrying an
// Idempotency-Key instead of running the handler again. Reusing a key with a
// different body is rejected with 422. Keys are scoped per caller and route.
// A nil store disables the middleware.
func Idempotency(store redisclient.ClientInterface, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			common.ErrorResponse(c, http.StatusBadRequest, "Idempotency-Key is too long")
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		requestHash := hashRequest(c.Request.Method, c.FullPath(), body)
		storeKey := idempotencyPrefix + callerScope(c) + ":" + c.FullPath() + ":" + key

		cached, err := store.GetString(ctx, storeKey)
		switch {
		case err == nil && cached != "":
			var entry idempotencyEntry
			if err := json.Unmarshal([]byte(cached), &entry); err == nil {
				if entry.RequestHash != requestHash {
					common.ErrorResponse(c, http.StatusUnprocessableEntity,
						"Idempotency-Key has already been used with a different request")
					c.Abort()
					return
				}
				c.Header(IdempotentReplayedHeader, "true")
				c.Data(entry.StatusCode, entry.ContentType, entry.Body)
				c.Abort()
				return
			}
			logger.WarnContext(ctx, "discarding unreadable idempotency entry", zap.String("key", key))
		case err != nil && !redisclient.IsNil(err):
			// an unreachable store must not block ingest
			logger.WarnContext(ctx, "idempotency lookup failed", zap.String("key", key), zap.Error(err))
		}

		writer := &recordingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		data, err := json.Marshal(idempotencyEntry{
			StatusCode:  status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
			RequestHash: requestHash,
		})
		if err == nil {
			err = store.SetWithExpiration(ctx, storeKey, string(data), ttl)
		}
		if err != nil {
			logger.WarnContext(ctx, "failed to store idempotent response",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

func callerScope(c *gin.Context) string {
	if id, err := GetUserID(c); err == nil {
		return "user:" + id
	}
	return "anon"
}

// hashRequest fingerprints method, route and body
func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
