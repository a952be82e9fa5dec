// Package httpapi exposes the attendance validation API over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"totpattend/internal/auth"
	"totpattend/internal/httpmiddleware"
)

// RouterConfig carries the router's cross-cutting settings.
type RouterConfig struct {
	AllowedOrigins []string
	Limiter        httpmiddleware.Limiter
	JWTSigningKey  string
	JWTIssuer      string
	Metrics        http.Handler
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(securityHeaders())

	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "not found")
	})

	r.GET("/healthz", h.Healthz)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := r.Group("/v1")
	validate := []gin.HandlerFunc{h.Validate}
	if cfg.Limiter != nil {
		validate = append([]gin.HandlerFunc{httpmiddleware.GinMiddleware(cfg.Limiter)}, validate...)
	}
	v1.POST("/attendance/validate", validate...)

	admin := v1.Group("/admin", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))
	{
		admin.GET("/meetings/:id/attendance", h.MeetingAttendance)
		admin.GET("/meetings/:id/recent", h.RecentCheckins)
		admin.POST("/roster/refresh", h.RefreshRoster)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
