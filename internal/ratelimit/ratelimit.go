package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket. Extraction requests
// each cost a browser launch, so limits are deliberately low.
type RateLimiter struct {
	visitors  map[string]*visitor
	whitelist map[string]bool
	mu        sync.Mutex
	logger    zerolog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter. Whitelisted IPs bypass it.
func NewRateLimiter(whitelistedIPs []string) *RateLimiter {
	whitelist := make(map[string]bool, len(whitelistedIPs))
	for _, ip := range whitelistedIPs {
		whitelist[ip] = true
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		whitelist: whitelist,
		logger:    zerolog.New(os.Stdout).With().Timestamp().Str("component", "ratelimit").Logger(),
	}
}

// Middleware creates a rate limiting middleware
func (rl *RateLimiter) Middleware(rps int, burst int) gin.HandlerFunc {
	go rl.cleanupVisitors()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		if rl.whitelist[ip] {
			c.Next()
			return
		}

		limiter := rl.getLimiter(ip, rps, burst)
		if !limiter.Allow() {
			rl.logger.Warn().Str("ip", ip).Msg("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rps))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		c.Next()
	}
}

// getLimiter gets or creates a limiter for a visitor
func (rl *RateLimiter) getLimiter(ip string, rps int, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		rl.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes visitors that have gone quiet
func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Hour)

		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > time.Hour {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Throttler bounds the number of requests in flight. Each extraction
// holds a whole browser, so the bound is what keeps memory sane.
type Throttler struct {
	requests chan struct{}
	logger   zerolog.Logger
}

// NewThrottler creates a new throttler
func NewThrottler(maxConcurrent int) *Throttler {
	return &Throttler{
		requests: make(chan struct{}, maxConcurrent),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "ratelimit").Logger(),
	}
}

// Middleware creates a throttling middleware
func (t *Throttler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		select {
		case t.requests <- struct{}{}:
			defer func() { <-t.requests }()
			c.Next()
		default:
			t.logger.Warn().Msg("Server overloaded")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Server overloaded, please try again later",
			})
			c.Abort()
		}
	}
}
