package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/susu3304/ruesquiz/internal/logger"
	"github.com/susu3304/ruesquiz/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observeMiddleware logs every request and records its latency by route template.
func (a *API) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		logger.Request(r.Method, r.URL.Path, rec.status, elapsed)
	})
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per user.
type limiterSet struct {
	mu       sync.Mutex
	perMin   int
	limiters map[uuid.UUID]*limiterEntry
}

func newLimiterSet(perMinute int) *limiterSet {
	return &limiterSet{
		perMin:   perMinute,
		limiters: make(map[uuid.UUID]*limiterEntry),
	}
}

func (s *limiterSet) allow(userID uuid.UUID) bool {
	if s.perMin <= 0 {
		return true
	}
	s.mu.Lock()
	entry, ok := s.limiters[userID]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMin)), s.perMin),
		}
		s.limiters[userID] = entry
	}
	entry.lastAccess = time.Now()
	s.mu.Unlock()
	return entry.limiter.Allow()
}

// prune drops buckets idle for longer than maxIdle.
func (s *limiterSet) prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.limiters {
		if time.Since(entry.lastAccess) > maxIdle {
			delete(s.limiters, id)
			removed++
		}
	}
	return removed
}

func (s *limiterSet) pruneEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.prune(interval); n > 0 {
				logger.Debug("Pruned %d idle rate limiters", n)
			}
		}
	}
}

// allowAttempt applies the per-user attempt limit, writing the 429 itself when exceeded.
func (a *API) allowAttempt(w http.ResponseWriter, userID uuid.UUID) bool {
	if a.limiters.allow(userID) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "Trop de tentatives, ralentissez.")
	return false
}
