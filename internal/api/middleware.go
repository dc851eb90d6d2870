package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RishiKendai/matchcode/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// apiKeyContextKey holds the caller identity used for rate limiting.
const apiKeyContextKey = "api_key"

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

// apiClaims are the token claims the service reads. api_key is optional.
type apiClaims struct {
	APIKey string `json:"api_key,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware validates HMAC signed bearer tokens. When issuer is set
// the iss claim must match it.
func JWTAuthMiddleware(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" || strings.Contains(raw, " ") {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
			return
		}

		claims := &apiClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			log.Debug().Err(err).Msg("Rejected token")
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		key := claims.APIKey
		if key == "" {
			key = claims.Subject
		}
		if key == "" {
			key = raw
		}
		c.Set(apiKeyContextKey, key)
		c.Next()
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per API key. Buckets idle for
// longer than idleTTL are evicted on a later lookup.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rps       float64
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters:  make(map[string]*limiterEntry),
		rps:       rps,
		burst:     burst,
		idleTTL:   time.Hour,
		lastSweep: time.Now(),
	}
}

// GetLimiter returns the bucket for key, creating it on first use.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rl.idleTTL {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.idleTTL {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimitMiddleware limits by API key, or by client IP for
// unauthenticated routes.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(apiKeyContextKey)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.GetLimiter(key).Allow() {
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

// ErrorHandlerMiddleware renders errors attached with c.Error when the
// handler did not write a response itself.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request error")
		if c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "INTERNAL_ERROR",
		})
	}
}

// RequestLoggerMiddleware logs every request with zerolog
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request handled")
	}
}

// MetricsMiddleware records request counts and durations per route
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RequestCount.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
