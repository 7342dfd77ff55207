package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

const apiKeyHeader = "X-API-Key"

// RouterConfig holds what the router needs beyond the handlers.
type RouterConfig struct {
	APIKey   string
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(api *API, cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NullLogger()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(cfg.Logger))
	if cfg.APIKey != "" {
		r.Use(apiKeyGuard(cfg.APIKey))
	}

	r.GET("/", api.Info)
	r.GET("/health", api.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api")
	{
		v1.GET("/stations", api.ListStations)
		v1.POST("/stations", api.CreateStation)
		v1.GET("/stations/:id", api.GetStation)
		v1.DELETE("/stations/:id", api.DeleteStation)
		v1.PUT("/stations/:id/default", api.SetDefaultStation)

		v1.GET("/leaderboard", api.GlobalLeaderboard)

		v1.GET("/guilds", api.ListSessions)
		v1.POST("/guilds/stop-all", api.StopAll)
		v1.GET("/guilds/:id/status", api.SessionStatus)
		v1.GET("/guilds/:id/leaderboard", api.GuildLeaderboard)
		v1.POST("/guilds/:id/play", api.Play)
		v1.POST("/guilds/:id/stop", api.Stop)
	}

	return r
}

// apiKeyGuard rejects requests without the configured key.
func apiKeyGuard(key string) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		provided := []byte(c.GetHeader(apiKeyHeader))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			abortWithError(c, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		c.Next()
	}
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	logger = logger.With(logging.String("component", "api"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("took", time.Since(start)))
	}
}
