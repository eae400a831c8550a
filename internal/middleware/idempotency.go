package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	inFlightTTL       = 30 * time.Second
	replayedHeader    = "Idempotent-Replayed"
)

// cachedResponse is a stored response for an idempotent request.
type cachedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// captureWriter tees the response body so it can be stored.
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the first response to a mutating request carrying an
// Idempotency-Key header. Keys are scoped to the route, and a second request
// arriving while the first is still running is rejected with 409.
func Idempotency(client redis.UniversalClient, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "idempotency")

	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := "idempotency:" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		lockKey := cacheKey + ":inflight"

		cached, err := loadResponse(ctx, client, cacheKey)
		switch {
		case err == nil:
			c.Header(replayedHeader, "true")
			c.Data(cached.StatusCode, cached.ContentType, cached.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			// Redis trouble must not block requests.
			log.WarnContext(ctx, "idempotency lookup failed", "error", err)
			c.Next()
			return
		}

		acquired, err := client.SetNX(ctx, lockKey, "1", inFlightTTL).Result()
		if err != nil {
			log.WarnContext(ctx, "idempotency lock failed", "error", err)
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			return
		}
		defer client.Del(context.WithoutCancel(ctx), lockKey)

		w := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		// Server errors are not stored so the client can retry.
		status := w.Status()
		if status >= 200 && status < 500 {
			resp := cachedResponse{
				StatusCode:  status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}
			if err := storeResponse(context.WithoutCancel(ctx), client, cacheKey, &resp); err != nil {
				log.WarnContext(ctx, "idempotency store failed", "error", err)
			}
		}
	}
}

func isMutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func loadResponse(ctx context.Context, client redis.UniversalClient, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func storeResponse(ctx context.Context, client redis.UniversalClient, key string, resp *cachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, idempotencyTTL).Err()
}
