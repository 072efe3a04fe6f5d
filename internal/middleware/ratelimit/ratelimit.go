package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"moneyviz/internal/cache"
)

// Limiter applies a token bucket per client IP. Buckets live in an LRU so
// idle clients age out on their own.
type Limiter struct {
	clients *cache.LRUCache[*rate.Limiter]
	limit   rate.Limit
	burst   int
	onLimit func()
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Burst             int
	MaxClients        int
	IdleTTL           time.Duration
	// OnLimit is called for every rejected request.
	OnLimit func()
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		MaxClients:        10000,
		IdleTTL:           10 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	defaults := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.MaxClients <= 0 {
		config.MaxClients = defaults.MaxClients
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if config.Burst <= 0 {
		config.Burst = config.RequestsPerMinute
	}

	return &Limiter{
		clients: cache.NewLRUCache[*rate.Limiter](config.MaxClients, config.IdleTTL),
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60),
		burst:   config.Burst,
		onLimit: config.OnLimit,
	}
}

// Allow checks if a request from the given IP should be allowed
func (rl *Limiter) Allow(clientIP string) bool {
	return rl.allowAt(clientIP, time.Now())
}

func (rl *Limiter) allowAt(clientIP string, now time.Time) bool {
	lim := rl.clients.GetOrCreate(clientIP, func() *rate.Limiter {
		return rate.NewLimiter(rl.limit, rl.burst)
	})
	return lim.AllowN(now, 1)
}

// retryAfter reports how long a rejected client should wait for one token.
func (rl *Limiter) retryAfter() int {
	secs := int(time.Duration(float64(time.Second)/float64(rl.limit)).Seconds() + 0.5)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Cleaner exposes the bucket store to a cache.Manager sweep.
func (rl *Limiter) Cleaner() cache.Cleaner {
	return rl.clients
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	return rl.clients.Size()
}

// Middleware creates HTTP middleware for rate limiting
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				if rl.onLimit != nil {
					rl.onLimit()
				}
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
