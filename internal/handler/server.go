// Package handler wires the Gin HTTP surface: submission intake,
// geolocate, country fallback, and the cell-area bulk export.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/geobeacon/backend/internal/config"
	"github.com/geobeacon/backend/internal/geoip"
	"github.com/geobeacon/backend/internal/geolocate"
	"github.com/geobeacon/backend/internal/intake"
	"github.com/geobeacon/backend/internal/metrics"
	"github.com/geobeacon/backend/internal/store"
)

// Server is the submission/geolocate HTTP server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	log        *logrus.Entry
}

// NewServer builds the router and registers every spec endpoint.
func NewServer(cfg *config.Config, intakeSvc *intake.Service, responder *geolocate.Responder, cellStore *store.Store, geoipTable *geoip.Table, log *logrus.Entry) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(loggerMiddleware(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.CORS))
	router.Use(rateLimitMiddleware(cfg.HTTP.RateLimitPerSec))
	router.Use(metricsMiddleware())

	h := &handlers{
		intake:     intakeSvc,
		responder:  responder,
		cellStore:  cellStore,
		geoip:      geoipTable,
		maxBody:    cfg.HTTP.MaxBodyBytes,
		log:        log,
	}

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/v2/geosubmit", h.submit)
	router.POST("/v1/geolocate", h.geolocate)
	router.POST("/v1/country", h.country)
	router.GET("/v0/cells/:radio/:country/:network/:area", h.cellsInArea)

	s := &Server{
		router: router,
		log:    log,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
	return s
}

// Start runs the HTTP server until it is shut down or fails.
func (s *Server) Start() error {
	s.log.WithField("address", s.httpServer.Addr).Info("starting http server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func loggerMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("http request completed")
	}
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func rateLimitMiddleware(perSec int) gin.HandlerFunc {
	if perSec <= 0 {
		perSec = 50
	}
	limiter := rate.NewLimiter(rate.Limit(perSec), perSec*2)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"code": "rate_limit_exceeded", "message": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, c.FullPath(), status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), status).Inc()
	}
}
