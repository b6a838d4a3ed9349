package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/namankalla/nishi/internal/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	Tokens         middleware.TokenValidator
	// ServiceKey guards /internal/v1; empty leaves those routes unmounted.
	ServiceKey string
	// Limiter may be nil, which disables rate limiting.
	Limiter *middleware.RateLimiter
	Metrics http.Handler
	Log     *zap.Logger
}

func NewRouter(plants *PlantHandler, rc RouterConfig) *gin.Engine {
	r := gin.New()
	log := rc.Log
	if log == nil {
		log = zap.NewNop()
	}
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.SecurityHeaders())

	config := cors.DefaultConfig()
	if len(rc.AllowedOrigins) > 0 {
		config.AllowOrigins = rc.AllowedOrigins
		config.AllowCredentials = true
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Idempotency-Key"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if rc.Metrics != nil {
		r.GET("/metrics", gin.WrapH(rc.Metrics))
	}

	limit := func(name string, n int, window time.Duration) gin.HandlerFunc {
		if rc.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return rc.Limiter.Limit(name, n, window)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(rc.Tokens))
	{
		plant := api.Group("/plants")
		{
			plant.GET("", plants.List)
			plant.POST("", limit("create_plant", 10, time.Minute), plants.Create)
			plant.GET("/:id", plants.GetOne)
			plant.PUT("/:id/name", plants.Rename)
			plant.POST("/:id/water", limit("water", 30, time.Minute), plants.Water)
			plant.POST("/:id/recover", limit("recover", 5, time.Minute), plants.Recover)
			plant.POST("/:id/transplant", plants.Transplant)
			plant.DELETE("/:id", plants.Delete)
		}
		api.GET("/points", plants.Points)
	}

	if rc.ServiceKey != "" {
		internal := r.Group("/internal/v1")
		internal.Use(middleware.ServiceKeyMiddleware(rc.ServiceKey))
		internal.POST("/points/credit", plants.Credit)
	}

	return r
}
