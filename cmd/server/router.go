package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qa-dashboard/backend/internal/auth"
	"github.com/qa-dashboard/backend/internal/middleware"
	"github.com/qa-dashboard/backend/internal/models"
	"github.com/qa-dashboard/backend/internal/questions"
	"github.com/qa-dashboard/backend/internal/realtime"
	"github.com/qa-dashboard/backend/pkg/response"
)

// routerDeps is everything the HTTP surface needs.
type routerDeps struct {
	CORSOrigins string
	Auth        *auth.Handler
	Questions   *questions.Handler
	JWT         *auth.JWTService
	Hub         *realtime.Hub
	Limiter     middleware.Limiter // nil disables rate limiting
	Ping        func(ctx context.Context) error
	Logger      *zap.Logger
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(d.Logger))

	router.GET("/", func(c *gin.Context) { response.OK(c, gin.H{"status": "running"}) })
	router.GET("/health", health(d))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", d.Auth.Register)
		authGroup.POST("/login", d.Auth.Login)
		authGroup.GET("/me", middleware.JWT(d.JWT), d.Auth.Me)
	}

	q := router.Group("/questions")
	{
		q.GET("", d.Questions.List)
		q.GET("/:id", d.Questions.Get)

		submit := q.Group("", middleware.OptionalJWT(d.JWT))
		if d.Limiter != nil {
			submit.Use(middleware.RateLimit(d.Limiter, d.Logger))
		}
		submit.POST("", d.Questions.Create)
		submit.POST("/:id/answer", d.Questions.Answer)

		admin := q.Group("", middleware.JWT(d.JWT), middleware.RequireRole(models.RoleAdmin))
		admin.POST("/:id/mark-answered", d.Questions.MarkAnswered)
		admin.POST("/:id/escalate", d.Questions.Escalate)
	}

	// Viewers connect without a token.
	router.GET("/ws/questions", realtime.ServeWs(d.Hub, d.Logger))

	return router
}

func health(d routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "store unavailable"})
				return
			}
		}
		response.OK(c, gin.H{"status": "healthy", "viewers": d.Hub.Count()})
	}
}
