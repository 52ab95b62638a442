package respcache

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librarium/librarium/internal/observability"
)

// Recorder counts cache outcomes.
type Recorder interface {
	CacheEvent(outcome string)
}

// Cache builds the caching and invalidation pipeline stages around a Store.
type Cache struct {
	store   Store
	logger  *slog.Logger
	metrics Recorder
}

// New builds a Cache. logger and metrics may be nil.
func New(store Store, logger *slog.Logger, metrics Recorder) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger, metrics: metrics}
}

// Create serves GET requests from the store and stores 2xx responses for ttl.
// Other methods pass through untouched.
func (c *Cache) Create(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			key := Key(r)
			entry, ok, err := c.store.Get(r.Context(), key)
			if err != nil {
				c.logger.Warn("response cache get failed", slog.String("key", key), slog.Any("error", err))
				c.record(observability.CacheStoreError)
			}
			if ok {
				c.record(observability.CacheHit)
				writeEntry(w, entry)
				return
			}
			c.record(observability.CacheMiss)

			capture := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if !isSuccess(capture.statusCode()) {
				return
			}
			stored := Entry{
				Status:      capture.statusCode(),
				ContentType: w.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			// The request context may already be cancelled by a timeout.
			ctx := context.WithoutCancel(r.Context())
			if err := c.store.Set(ctx, key, stored, ttl); err != nil {
				c.logger.Warn("response cache set failed", slog.String("key", key), slog.Any("error", err))
				c.record(observability.CacheStoreError)
				return
			}
			c.record(observability.CacheStored)
		})
	}
}

// Invalidate deletes every cached GET whose route starts with prefix once the
// wrapped handler has completed with a 2xx status.
func (c *Cache) Invalidate(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(recorder, r)
			if !isSuccess(recorder.statusCode()) {
				return
			}
			c.Purge(context.WithoutCancel(r.Context()), prefix)
		})
	}
}

// Purge removes cached GET responses for prefix immediately.
func (c *Cache) Purge(ctx context.Context, prefix string) {
	removed, err := c.store.DeletePrefix(ctx, http.MethodGet+" "+prefix)
	if err != nil {
		c.logger.Warn("response cache invalidate failed", slog.String("prefix", prefix), slog.Any("error", err))
		c.record(observability.CacheStoreError)
		return
	}
	c.record(observability.CacheInvalidate)
	c.logger.Debug("response cache invalidated", slog.String("prefix", prefix), slog.Int("removed", removed))
}

func (c *Cache) record(outcome string) {
	if c.metrics != nil {
		c.metrics.CacheEvent(outcome)
	}
}

// Key derives the cache key from method, route template, path and canonical query.
func Key(r *http.Request) string {
	template := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			template = pattern
		}
	}
	return r.Method + " " + template + " " + r.URL.Path + "?" + canonicalQuery(r.URL.Query())
}

// canonicalQuery sorts keys so that ?a=1&b=2 and ?b=2&a=1 share an entry.
func canonicalQuery(values url.Values) string {
	return values.Encode()
}

func writeEntry(w http.ResponseWriter, entry Entry) {
	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(data)
}

func (w *statusWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *captureWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
