package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"taskelio/internal/config"
	appmetrics "taskelio/internal/metrics"

	"github.com/gin-gonic/gin"
)

// tokenBucket refills ratePerSec tokens per second up to burst.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	ratePerSec float64
	burst      float64
}

func newBucket(rpm, burst int, now time.Time) *tokenBucket {
	if rpm <= 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = rpm
	}
	return &tokenBucket{
		tokens:     float64(burst),
		lastRefill: now,
		ratePerSec: float64(rpm) / 60.0,
		burst:      float64(burst),
	}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.ratePerSec
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
		b.lastRefill = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

type limiter struct {
	name    string
	prefix  string
	rpm     int
	burst   int
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(l.rpm, l.burst, now)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.allow(now)
}

// RateLimit limits requests per caller. The caller is the authenticated
// owner when Auth ran first, else the configured key header, else the client
// IP. The first path override whose prefix matches wins over the global limit.
func RateLimit(rl config.RateLimitingConfig) gin.HandlerFunc {
	return rateLimit(rl, time.Now)
}

func rateLimit(rl config.RateLimitingConfig, now func() time.Time) gin.HandlerFunc {
	if !rl.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	var paths []*limiter
	for _, p := range rl.Paths {
		if !p.Enabled || p.RequestsPerMinute <= 0 || p.Prefix == "" {
			continue
		}
		paths = append(paths, &limiter{name: p.Prefix, prefix: p.Prefix, rpm: p.RequestsPerMinute, burst: p.Burst,
			buckets: make(map[string]*tokenBucket)})
	}
	var global *limiter
	if rl.RequestsPerMinute > 0 {
		global = &limiter{name: "global", rpm: rl.RequestsPerMinute, burst: rl.Burst, buckets: make(map[string]*tokenBucket)}
	}
	whitelistIPs := toSet(rl.WhitelistIPs)
	whitelistKeys := toSet(rl.WhitelistKeys)

	return func(c *gin.Context) {
		key, fromHeader := callerKey(c, rl.KeyHeader)
		if fromHeader && whitelistKeys[key] {
			c.Next()
			return
		}
		if whitelistIPs[c.ClientIP()] {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := global
		for _, pl := range paths {
			if strings.HasPrefix(path, pl.prefix) {
				l = pl
				break
			}
		}
		if l != nil && !l.allow(key, now()) {
			appmetrics.IncRateLimitDrop(l.name)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Too Many Requests",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context, header string) (key string, fromHeader bool) {
	if owner := c.GetString(ContextOwnerID); owner != "" {
		return "owner:" + owner, false
	}
	if header != "" {
		if v := c.GetHeader(header); v != "" {
			if strings.EqualFold(header, "X-Forwarded-For") {
				v = strings.TrimSpace(strings.Split(v, ",")[0])
			}
			return v, true
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip, false
	}
	return "unknown", false
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out[s] = true
		}
	}
	return out
}
