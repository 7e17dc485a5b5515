package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPThrottle is a token bucket per client IP.
type IPThrottle struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

func NewIPThrottle(rps float64, burst int, logger *logger.Logger) *IPThrottle {
	return &IPThrottle{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		logger:   logger,
		now:      time.Now,
	}
}

func (t *IPThrottle) limiter(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.visitors[ip] = v
	}
	v.lastSeen = t.now()
	return v.limiter
}

// Middleware rejects requests over the bucket with 429 and a Retry-After header.
func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		reservation := t.limiter(ip).ReserveN(t.now(), 1)
		if !reservation.OK() {
			apierrors.AbortWithRateLimit(c, time.Second)
			return
		}

		if delay := reservation.DelayFrom(t.now()); delay > 0 {
			reservation.CancelAt(t.now())
			t.logger.WithContext(c.Request.Context()).Warn("request throttled",
				slog.String("ip", ip),
				slog.String("path", c.FullPath()))
			apierrors.AbortWithRateLimit(c, delay)
			return
		}

		c.Next()
	}
}

// Cleanup forgets visitors idle for longer than the idle TTL.
func (t *IPThrottle) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.idleTTL)
	for ip, v := range t.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(t.visitors, ip)
		}
	}
}

// StartCleanup runs Cleanup every interval until stop is closed.
func (t *IPThrottle) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
