package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kananavy/pharmacie/internal/apierror"
)

// fenetreIP counts requests from one client IP in a fixed window.
type fenetreIP struct {
	count int
	fin   time.Time
}

// RateLimiter is a per-IP fixed-window limiter. Each instance owns its map,
// so tests and route groups can hold separate budgets.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu  sync.Mutex
	ips map[string]*fenetreIP
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, now: time.Now, ips: make(map[string]*fenetreIP)}
}

// Handler returns the gin middleware.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, fin := l.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", fin.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.WithCode(apierror.CodeRateLimited, "Trop de requêtes, réessayez dans un instant"))
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.ips[ip]
	if !ok || now.After(e.fin) {
		e = &fenetreIP{fin: now.Add(l.window)}
		l.ips[ip] = e
	}
	e.count++
	return e.count <= l.limit, e.fin
}

// Purge drops expired windows. Run it periodically from the server.
func (l *RateLimiter) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	purged := 0
	for ip, e := range l.ips {
		if now.After(e.fin) {
			delete(l.ips, ip)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(l.ips)).Msg("rate limiter purged")
	}
	return purged
}
