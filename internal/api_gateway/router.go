package api_gateway

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/trading-account-engine/internal/api_gateway/handler"
	"github.com/trading-account-engine/internal/api_gateway/middleware"
	"github.com/trading-account-engine/internal/platform/metrics"
)

// handlers groups the HTTP handlers mounted by setupRouter
type handlers struct {
	account   *handler.AccountHandler
	execution *handler.ExecutionHandler
	preTrade  *handler.PreTradeHandler
	quote     *handler.QuoteHandler
	stream    *handler.StreamHandler
	health    *handler.HealthHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(metrics.GinMiddleware())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", h.account.Create)
			accounts.GET("", h.account.List)
			accounts.GET("/:id", h.account.GetByID)
			accounts.GET("/:id/events", h.account.GetEvents)
			accounts.GET("/:id/executions", h.execution.GetByAccountID)
			accounts.GET("/:id/margin-initial", h.preTrade.MarginInitial)
			accounts.GET("/:id/stream", h.stream.Stream)
		}

		// Execution events
		executions := v1.Group("/executions")
		{
			executions.POST("", h.execution.Create)
			executions.GET("/:id", h.execution.GetByID)
		}

		// Market data
		quotes := v1.Group("/quotes")
		{
			quotes.POST("", h.quote.Create)
			quotes.GET("", h.quote.List)
		}
	}

	r.GET("/health", h.health.Check)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
