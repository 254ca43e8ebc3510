package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jkindrix/bluehome/internal/audit"
	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/metrics"
)

// Rate limit scopes, used as the metric label.
const (
	ScopeIP      = "ip"
	ScopeContact = "contact"
)

// MaxTrackedKeys caps the buckets held at once. Keys seen past the cap share
// one overflow bucket until the sweep frees room.
const MaxTrackedKeys = 10000

const overflowKey = "\x00overflow"

// RateLimiter keeps one token bucket per key, by default the client IP.
// Buckets idle for more than two windows are dropped by a background sweep
// until Stop is called.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	window   time.Duration
	scope    string
	maxKeys  int

	clock   clock.Clock
	metrics *metrics.Metrics
	audit   *audit.Logger
	logger  *zap.Logger

	stopOnce sync.Once
	done     chan struct{}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for each key, with bursts up to requests.
func NewRateLimiter(requests int, window time.Duration, c clock.Clock, m *metrics.Metrics, logger *zap.Logger) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if c == nil {
		c = clock.New()
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		window:   window,
		scope:    ScopeIP,
		maxKeys:  MaxTrackedKeys,
		clock:    c,
		metrics:  m,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := rl.clock.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C():
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *RateLimiter) get(key string) *visitor {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		if len(rl.visitors) >= rl.maxKeys {
			key = overflowKey
			v, ok = rl.visitors[key]
		}
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
			rl.visitors[key] = v
		}
	}
	v.lastSeen = rl.clock.Now()
	return v
}

// allow consumes one token for key.
func (rl *RateLimiter) allow(key string) bool {
	return rl.get(key).limiter.AllowN(rl.clock.Now(), 1)
}

// remaining returns the whole tokens left for key.
func (rl *RateLimiter) remaining(key string) int {
	tokens := rl.get(key).limiter.TokensAt(rl.clock.Now())
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// WithAudit records rejected requests to a. It returns rl for chaining.
func (rl *RateLimiter) WithAudit(a *audit.Logger) *RateLimiter {
	rl.audit = a
	return rl
}

// WithScope sets the metric label of rejections. It returns rl for chaining.
func (rl *RateLimiter) WithScope(scope string) *RateLimiter {
	rl.scope = scope
	return rl
}

// Allow consumes a token for key on behalf of r. A rejection is counted,
// audited and logged.
func (rl *RateLimiter) Allow(r *http.Request, key string) bool {
	if rl.allow(key) {
		return true
	}
	ip := getClientIP(r)
	rl.metrics.RecordRateLimitHit(rl.scope)
	rl.audit.RateLimitExceeded(r.Context(), ip, GetRequestID(r.Context()), r.URL.Path)
	LoggerWithCorrelation(r.Context(), rl.logger).Warn("rate limit exceeded",
		zap.String("scope", rl.scope),
		zap.String("key", key),
		zap.String("ip", ip),
		zap.String("path", r.URL.Path),
	)
	return false
}

// RetryAfter is the Retry-After value in seconds for a rejected request.
func (rl *RateLimiter) RetryAfter() int {
	retry := time.Duration(float64(time.Second) / float64(rl.limit))
	return int(retry.Seconds()) + 1
}

// Middleware limits by client IP and rejects requests over the limit with
// 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)

		if !rl.Allow(r, ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.remaining(ip)))
		next.ServeHTTP(w, r)
	})
}

// getClientIP returns the host of RemoteAddr. Forwarding headers are only
// honoured when chi's RealIP runs in front and rewrites RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
