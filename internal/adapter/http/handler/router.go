package handler

import (
	"net/http"

	"paygate/internal/adapter/http/middleware"
	"paygate/internal/core/ports"
	"paygate/internal/tools"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	MCPHandler     http.Handler
	Catalog        *tools.Catalog
	Prices         ports.PricePolicy
	FundingSvc     ports.FundingService
	FundingStore   ports.FundingStore
	HashSvc        ports.HashService
	TokenSvc       ports.TokenService
	AdminKeyHash   string               // empty = admin API disabled
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	RateLimit      middleware.RateLimitRule
	MaxBodyBytes   int64
	Gatherer       prometheus.Gatherer // nil = no /metrics
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
// The gin mode is left to the caller.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	docs := r.Group("/docs")
	{
		docs.GET("", DocsUI)
		docs.GET("/spec", OpenAPISpec)
	}

	// MCP streamable transport: POST for calls, GET for the event stream,
	// DELETE to end a session.
	mcp := []gin.HandlerFunc{}
	if deps.RateLimitStore != nil && deps.RateLimit.Limit > 0 {
		mcp = append(mcp, middleware.RateLimiter(deps.RateLimitStore, deps.TokenSvc, "mcp", deps.RateLimit, deps.Logger))
	}
	mcp = append(mcp, gin.WrapH(deps.MCPHandler))
	r.Any("/mcp", mcp...)

	v1 := r.Group("/api/v1")

	operationHandler := NewOperationHandler(deps.Catalog, deps.Prices)
	v1.GET("/operations", operationHandler.List)

	if deps.AdminKeyHash != "" {
		fundingHandler := NewFundingHandler(deps.FundingSvc, deps.FundingStore)
		admin := v1.Group("/admin", middleware.AdminAuth(deps.HashSvc, deps.AdminKeyHash, deps.Logger))
		{
			admin.POST("/funding-sources", fundingHandler.Provision)
			admin.GET("/funding-sources/:id", fundingHandler.Get)
			admin.GET("/funding-sources/:id/balance", fundingHandler.GetBalance)
			admin.POST("/funding-sources/:id/deposits", fundingHandler.Deposit)
			admin.POST("/funding-sources/:id/tokens", fundingHandler.IssueToken)
			admin.GET("/funding-sources/:id/transfers", fundingHandler.ListTransfers)
			admin.GET("/transfers", fundingHandler.GetTransfer)
		}
	}

	return r
}
