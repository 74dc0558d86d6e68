package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RouterOptions configures the engine built by NewRouter.
type RouterOptions struct {
	APIPrefix      string
	AllowedOrigins []string
	StaticRoot     string
	RateLimitRPS   float64
	RateLimitBurst int
	Metrics        http.Handler
	Debug          bool
}

// NewRouter builds the gin engine with recovery, request logging, CORS, static files, metrics and the API routes. ctx
// bounds the background work of the rate limiter.
func NewRouter(ctx context.Context, h *Image, opts RouterOptions, logger zerolog.Logger) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	// no origins means no CORS headers, so browsers refuse cross-origin calls
	if len(opts.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	if opts.StaticRoot != "" {
		engine.Use(static.Serve("/static", static.LocalFile(opts.StaticRoot, false)))
	}

	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := engine.Group(strings.TrimSuffix(opts.APIPrefix, "/"))
	api.GET("/health", h.Health)

	processing := api.Group("")
	if opts.RateLimitRPS > 0 {
		processing.Use(rateLimiter(ctx, opts.RateLimitRPS, opts.RateLimitBurst, logger))
	}
	processing.POST("/remove-background", h.RemoveBackground)
	processing.POST("/dewatermark", h.Dewatermark)

	return engine
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	l := logger.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := l.Info()
		if status >= http.StatusInternalServerError {
			event = l.Error()
		} else if status >= http.StatusBadRequest {
			event = l.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("client", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("handled request")
	}
}

// rateLimiter allows rps requests per second per client IP with the given burst. Idle clients are forgotten after
// a few minutes.
func rateLimiter(ctx context.Context, rps float64, burst int, logger zerolog.Logger) gin.HandlerFunc {
	type visitor struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	if burst <= 0 {
		burst = 1
	}

	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
	)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				for ip, v := range visitors {
					if time.Since(v.lastSeen) > 3*time.Minute {
						delete(visitors, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			visitors[ip] = v
		}
		v.lastSeen = time.Now()
		mu.Unlock()

		if !v.limiter.Allow() {
			logger.Warn().Str("client", ip).Str("path", c.Request.URL.Path).Msg("rate limited client")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}

		c.Next()
	}
}
