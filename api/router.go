// Package api wires the intake HTTP routes.
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kutbudev/boardroom/api/handlers"
	"github.com/kutbudev/boardroom/internal/tracing"
)

// NewRouter builds the gin engine serving h
func NewRouter(h *handlers.Handler, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// Ping endpoint for health check
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		v1.POST("/intake/cards/:id/triage", h.TriageCard)
		v1.POST("/ingest", h.Ingest)
		v1.POST("/receipts", h.ExtractReceipt)

		v1.GET("/cards/:id", h.GetCard)
		v1.POST("/cards/:id/accept", h.AcceptSuggestion)
		v1.PUT("/cards/:id/parent", h.SetParent)

		// Board routes
		v1.GET("/boards/:id/cards", h.ListBoardCards)
		v1.POST("/boards/:id/similar", h.FindSimilar)
		v1.POST("/boards/:id/extract-tasks", h.ExtractTasks)
		v1.POST("/boards/:id/recount", h.RecountBoard)
	}

	return r
}

// requestLogger opens a span per request and logs the outcome with its trace id
func requestLogger(logger *log.Logger) gin.HandlerFunc {
	tracer := otel.Tracer("github.com/kutbudev/boardroom/api")
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), fmt.Sprintf("%s %s", c.Request.Method, route))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		}

		entry := logger.WithFields(tracing.LogFields(ctx)).WithFields(log.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": time.Since(start).String(),
		})
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
