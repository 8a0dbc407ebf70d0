// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// WindowLimiter is a fixed-window limiter whose counters live in the
// rate_windows table, so every instance behind the load balancer enforces
// the same budget. It guards the public read path and the password unlock
// endpoint, where brute forcing is the threat.
package middleware

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/metrics"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
)

// WindowLimiter allows Limit requests per Window for each client IP.
type WindowLimiter struct {
	DB     *gorm.DB
	Name   string
	Limit  int
	Window time.Duration

	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	hits atomic.Uint64
}

// purgeEvery controls how often expired windows are deleted inline.
const purgeEvery = 500

// NewWindowLimiter returns a limiter named name (used in keys and metrics).
func NewWindowLimiter(db *gorm.DB, name string, limit int, window time.Duration) *WindowLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{DB: db, Name: name, Limit: limit, Window: window, Now: time.Now}
}

// Handler counts the request and rejects it once the window is over budget.
// Storage errors fail open: the request proceeds and the error is logged.
func (wl *WindowLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if wl.Limit <= 0 {
			c.Next()
			return
		}
		now := time.Now()
		if wl.Now != nil {
			now = wl.Now()
		}
		ctx := c.Request.Context()

		n, err := repo.HitRateWindow(ctx, wl.DB, wl.Name+":ip:"+c.ClientIP(), wl.Window, now)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("limiter", wl.Name).Msg("rate window unavailable")
			c.Next()
			return
		}

		if wl.hits.Add(1)%purgeEvery == 0 {
			if _, err := repo.PurgeRateWindows(ctx, wl.DB, now); err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("purge rate windows failed")
			}
		}

		if n > wl.Limit {
			metrics.RateLimited.WithLabelValues(wl.Name).Inc()
			end := now.UTC().Truncate(wl.Window).Add(wl.Window)
			abortRateLimited(c, int(math.Ceil(end.Sub(now).Seconds())))
			return
		}
		c.Next()
	}
}
