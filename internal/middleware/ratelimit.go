package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"authgate/internal/metrics"
	"authgate/pkg/apierror"
)

const generalBucket = "general"

type clientLimiter struct {
	buckets  map[string]*rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware throttles callers per client IP. Every request counts
// against the general bucket; routes wrapped with Limit also count against
// their own named bucket.
type RateLimitMiddleware struct {
	generalRPM int
	recorder   metrics.Recorder
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	now        func() time.Time
}

// NewRateLimitMiddleware builds the limiter. A generalRPM of zero or less
// leaves the general bucket unlimited.
func NewRateLimitMiddleware(generalRPM int, recorder metrics.Recorder) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		recorder:   recorder,
		clients:    map[string]*clientLimiter{},
		now:        time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	if m.generalRPM <= 0 {
		return next
	}
	return m.guard(generalBucket, m.generalRPM, next)
}

// Limit returns a middleware enforcing rpm requests per minute for bucket.
func (m *RateLimitMiddleware) Limit(bucket string, rpm int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rpm <= 0 {
			return next
		}
		return m.guard(bucket, rpm, next)
	}
}

func (m *RateLimitMiddleware) guard(bucket string, rpm int, next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(rpm)).Seconds()) + 1)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := m.getLimiter(extractClientIP(r), bucket, rpm)
		if !limiter.AllowN(m.now(), 1) {
			if m.recorder != nil {
				m.recorder.RecordRateLimited(bucket)
			}
			w.Header().Set("Retry-After", retryAfter)
			WriteError(w, r, apierror.New(apierror.KindRateLimited))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) getLimiter(clientIP, bucket string, rpm int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	client, exists := m.clients[clientIP]
	if !exists {
		client = &clientLimiter{buckets: map[string]*rate.Limiter{}}
		m.clients[clientIP] = client
	}
	client.lastSeen = now

	limiter, ok := client.buckets[bucket]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
		client.buckets[bucket] = limiter
	}
	m.gcLocked(now)

	return limiter
}

func (m *RateLimitMiddleware) gcLocked(now time.Time) {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := now.Add(-10 * time.Minute)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func extractClientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
