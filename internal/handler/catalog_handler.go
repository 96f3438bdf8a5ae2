package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/service"
)

// CatalogHandler serves the read-only catalogs of registered indicators
// and strategies.
type CatalogHandler struct {
	backtestService *service.BacktestService
	logger          *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(backtestService *service.BacktestService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		backtestService: backtestService,
		logger:          logger,
	}
}

// ListIndicators handles GET /api/v1/indicators
func (h *CatalogHandler) ListIndicators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"indicators": h.backtestService.ListIndicators()})
}

// ListStrategies handles GET /api/v1/strategies
func (h *CatalogHandler) ListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": h.backtestService.ListStrategies()})
}
