package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache returns middleware that serves GET responses from Redis for the
// given TTL. Used on the availability endpoint, where the same day is
// queried repeatedly between booking writes. A nil client disables caching.
func Cache(client *redis.Client, prefix string, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := cacheKey(prefix, r)

			ctx, cancel := context.WithTimeout(r.Context(), 200*time.Millisecond)
			cached, err := client.Get(ctx, key).Bytes()
			cancel()
			if err == nil && len(cached) > 0 {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(cached)
				return
			}

			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(cw, r)

			// Only successful JSON bodies are worth caching.
			if cw.status == http.StatusOK && cw.buf.Len() > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
				if err := client.Set(ctx, key, cw.buf.Bytes(), ttl).Err(); err != nil {
					log.Debug().Err(err).Str("key", key).Msg("Cache store failed")
				}
				cancel()
			}
		})
	}
}

// InvalidateDay drops the cached availability responses for a calendar day.
// Called after any reservation write touching that day.
func InvalidateDay(ctx context.Context, client *redis.Client, prefix string, day time.Time) {
	if client == nil {
		return
	}
	pattern := fmt.Sprintf("%s:%s:*", prefix, day.Format("2006-01-02"))
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Debug().Err(err).Str("pattern", pattern).Msg("Cache invalidation scan failed")
	}
}

// cacheKey builds a stable key from the date query param plus the full query
// string, so different min-duration filters cache independently.
func cacheKey(prefix string, r *http.Request) string {
	day := r.URL.Query().Get("date")
	sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", prefix, day, sum[:8])
}

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.buf.Write(b)
	return cw.ResponseWriter.Write(b)
}
