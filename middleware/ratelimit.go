package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix seconds
}

// RateLimit provides per-IP token-bucket rate limiting.
// r = requests per second, b = burst size.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	return rateLimitBy(r, b, func(c *gin.Context) string { return c.ClientIP() })
}

// PlayerRateLimit limits each authenticated player separately. It must run
// after Auth; unauthenticated requests fall back to the client IP.
func PlayerRateLimit(r rate.Limit, b int) gin.HandlerFunc {
	return rateLimitBy(r, b, func(c *gin.Context) string {
		if id := GetPlayerID(c); id != 0 {
			return "p:" + strconv.FormatInt(id, 10)
		}
		return c.ClientIP()
	})
}

func rateLimitBy(r rate.Limit, b int, key func(*gin.Context) string) gin.HandlerFunc {
	limiters := &sync.Map{}

	// Cleanup goroutine: remove stale entries every 5 minutes.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-10 * time.Minute).Unix()
			limiters.Range(func(k, v interface{}) bool {
				if v.(*keyedLimiter).lastSeen.Load() < cutoff {
					limiters.Delete(k)
				}
				return true
			})
		}
	}()

	getLimiter := func(k string) *rate.Limiter {
		v, _ := limiters.LoadOrStore(k, &keyedLimiter{limiter: rate.NewLimiter(r, b)})
		kl := v.(*keyedLimiter)
		kl.lastSeen.Store(time.Now().Unix())
		return kl.limiter
	}

	return func(c *gin.Context) {
		if !getLimiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
