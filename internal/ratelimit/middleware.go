package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"healthexchange/pkg/platform/httputil"
)

// KeyFunc derives the limiter key for a request, typically the client IP or
// the authenticated principal.
type KeyFunc func(r *http.Request) string

// Middleware applies a per-key request limit in front of a handler. When the
// primary store fails a fallback in-memory store takes over, so a store
// outage degrades to per-instance limiting instead of letting traffic
// through unmetered.
type Middleware struct {
	store    Store
	fallback Store
	key      KeyFunc
	limit    int
	window   time.Duration
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) { m.logger = logger }
}

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func New(store Store, key KeyFunc, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		fallback: NewInMemoryStore(),
		key:      key,
		limit:    limit,
		window:   window,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := m.key(r)
		result, err := m.store.Allow(r.Context(), key, m.limit, m.window)
		if err != nil {
			m.logger.Error("rate limit store check failed, using fallback", "error", err)
			result, err = m.fallback.Allow(r.Context(), key, m.limit, m.window)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":   "rate_limit_exceeded",
				"message": "too many requests, retry later",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
