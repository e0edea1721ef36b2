package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"checkin-billboard-backend/config"
	"checkin-billboard-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, h *Handler) *gin.Engine {
	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		r.RemoteIPHeaders = []string{cfg.RequestIPHeader}
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", mw.RequestIDHeader},
		ExposeHeaders:    []string{mw.RequestIDHeader},
		AllowCredentials: len(cfg.AllowedOrigins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg), mw.RequestID())

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)
	admin := mw.RequireAdmin(cfg.AdminJWTSecret)

	r.GET("/health", h.Health)

	api := r.Group("/")
	api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	{
		api.GET("/global-billboard", h.GetGlobalBillboard)
		api.POST("/set-global-billboard", admin, h.SetGlobalBillboard)
		api.POST("/clear-global-billboard", admin, h.SoftClearGlobalBillboard)
		api.DELETE("/global-billboard", admin, h.DeleteGlobalBillboard)
		api.GET("/global-billboard/audit", admin, h.GetAudit)

		api.GET("/active-notifications", h.GetActiveNotifications)
		api.POST("/security-code-entry", h.SubmitSecurityCode)
		api.POST("/security-codes", h.LookupSecurityCodes)

		api.GET("/events-by-date", caching, h.GetEventsByDate)
		api.GET("/events/:id/locations", caching, h.GetEventLocations)
		api.GET("/billboard/check-ins", h.GetCheckIns)
		api.GET("/billboard/locations", h.GetLocationSnapshots)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid-public-key", h.GetVAPIDPublicKey)
	}

	return r
}
