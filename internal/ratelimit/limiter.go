package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const idleBucketTTL = 24 * time.Hour

// Limiter implements a token bucket rate limiter per client IP
type Limiter struct {
	Configuration *config.Config
	logger        *logger.Logger

	// Map of IP -> token bucket
	clientBuckets map[string]*clientBucket
	bucketsMutex  sync.Mutex

	// Cleanup goroutine control
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a new rate limiter and starts its cleanup loop
func NewLimiter(configuration *config.Config, logger *logger.Logger) *Limiter {
	rateLimiter := &Limiter{
		Configuration: configuration,
		logger:        logger,
		clientBuckets: make(map[string]*clientBucket),
		cleanupTicker: time.NewTicker(5 * time.Minute),
		stopCleanup:   make(chan struct{}),
	}

	go rateLimiter.cleanup()

	return rateLimiter
}

// Allow checks if a request from the given IP is allowed
func (rateLimiter *Limiter) Allow(clientIP string) bool {
	if !rateLimiter.Configuration.RateLimitEnabled {
		return true
	}

	rateLimiter.bucketsMutex.Lock()
	bucket, bucketExists := rateLimiter.clientBuckets[clientIP]
	if !bucketExists {
		bucket = &clientBucket{limiter: rate.NewLimiter(rateLimiter.limit(), rateLimiter.burst())}
		rateLimiter.clientBuckets[clientIP] = bucket
	}
	bucket.lastSeen = time.Now()
	rateLimiter.bucketsMutex.Unlock()

	return bucket.limiter.Allow()
}

// limit converts "requests per window" into a steady refill rate
func (rateLimiter *Limiter) limit() rate.Limit {
	window := rateLimiter.Configuration.RateLimitWindow
	requests := rateLimiter.Configuration.RateLimitRequests
	if window <= 0 || requests <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(requests) / window.Seconds())
}

func (rateLimiter *Limiter) burst() int {
	if rateLimiter.Configuration.RateLimitBurst <= 0 {
		return 1
	}
	return rateLimiter.Configuration.RateLimitBurst
}

// Middleware returns a gin middleware answering 429 when the client's bucket is empty
func (rateLimiter *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := rateLimiter.GetClientIP(c.Request)

		if !rateLimiter.Allow(clientIP) {
			rateLimiter.logger.Warnf("Rate limit exceeded for IP: %s", clientIP)
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rateLimiter.Configuration.RateLimitRequests))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(rateLimiter.Configuration.RateLimitWindow).Unix()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Rate limit exceeded",
				"code":    http.StatusTooManyRequests,
			})
			return
		}

		c.Next()
	}
}

// GetClientIP extracts the real client IP from the request
func (rateLimiter *Limiter) GetClientIP(request *http.Request) string {
	// X-Forwarded-For may carry a list; the first entry is the client
	if xForwardedFor := request.Header.Get("X-Forwarded-For"); xForwardedFor != "" {
		first := strings.TrimSpace(strings.Split(xForwardedFor, ",")[0])
		if clientIP := net.ParseIP(first); clientIP != nil {
			return clientIP.String()
		}
		if host, _, err := net.SplitHostPort(first); err == nil {
			if clientIP := net.ParseIP(host); clientIP != nil {
				return clientIP.String()
			}
		}
	}

	if xRealIP := request.Header.Get("X-Real-IP"); xRealIP != "" {
		if clientIP := net.ParseIP(strings.TrimSpace(xRealIP)); clientIP != nil {
			return clientIP.String()
		}
	}

	clientIP, _, parseError := net.SplitHostPort(request.RemoteAddr)
	if parseError != nil {
		return request.RemoteAddr
	}
	return clientIP
}

// Len returns the number of tracked clients
func (rateLimiter *Limiter) Len() int {
	rateLimiter.bucketsMutex.Lock()
	defer rateLimiter.bucketsMutex.Unlock()
	return len(rateLimiter.clientBuckets)
}

// cleanup removes idle buckets to prevent memory leaks
func (rateLimiter *Limiter) cleanup() {
	for {
		select {
		case <-rateLimiter.cleanupTicker.C:
			rateLimiter.evictIdle(time.Now())
		case <-rateLimiter.stopCleanup:
			rateLimiter.cleanupTicker.Stop()
			return
		}
	}
}

func (rateLimiter *Limiter) evictIdle(now time.Time) {
	rateLimiter.bucketsMutex.Lock()
	defer rateLimiter.bucketsMutex.Unlock()
	for clientIP, bucket := range rateLimiter.clientBuckets {
		if now.Sub(bucket.lastSeen) > idleBucketTTL {
			delete(rateLimiter.clientBuckets, clientIP)
		}
	}
}

// Stop stops the cleanup goroutine
func (rateLimiter *Limiter) Stop() {
	rateLimiter.stopOnce.Do(func() {
		close(rateLimiter.stopCleanup)
	})
}
