package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dailyplan/internal/calendar"
	"dailyplan/internal/metrics"
	"dailyplan/internal/model"
	"dailyplan/internal/planning"
)

// DayCloser is satisfied by service.SummaryService.
type DayCloser interface {
	Shutdown(ctx context.Context, userID uint, date time.Time) (*model.DailyPlan, model.DaySummary, error)
}

// WatchController is satisfied by calendar.WatchManager.
type WatchController interface {
	Setup(ctx context.Context, userID uint, calendarID string) (*model.GoogleSyncState, error)
	Stop(ctx context.Context, userID uint, calendarID string) error
}

// NotificationHandler is satisfied by calendar.WebhookHandler.
type NotificationHandler interface {
	Handle(ctx context.Context, n calendar.Notification) (calendar.WebhookResult, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Capacity    planning.CapacityReader
	Suggestions planning.CandidateLister
	Plans       planning.Committer
	Days        DayCloser
	Tasks       TaskManager
	Watches     WatchController
	Queue       calendar.Enqueuer
	Webhook     NotificationHandler
	Checks      map[string]ReadinessCheck
	JWTSecret   string
	Logger      *zap.Logger
	Now         func() time.Time
}

type handlers struct {
	Deps
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handlers{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/webhooks/google/calendar", h.googleWebhook)

	api := r.Group("/api")
	api.Use(AuthMiddleware(deps.JWTSecret))
	{
		api.GET("/planning/capacity", h.capacity)
		api.GET("/planning/suggestions", h.suggestions)
		api.POST("/planning/commit", h.commit)
		api.POST("/days/:date/shutdown", h.shutdown)
		api.POST("/calendar/watch", h.startWatch)
		api.DELETE("/calendar/watch", h.stopWatch)
		api.POST("/calendar/sync", h.enqueueSync)
		if deps.Tasks != nil {
			registerTaskRoutes(api, h)
		}
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, c.Writer.Status(), latency)
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (h *handlers) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
