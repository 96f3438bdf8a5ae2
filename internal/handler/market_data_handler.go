package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/model"
	"github.com/yourorg/backtest-service/internal/repository"
)

// MarketDataHandler handles market data HTTP requests. The candles
// endpoint mirrors the historical data service's service-to-service API
// so backtest services can be chained.
type MarketDataHandler struct {
	barRepo *repository.BarRepository
	logger  *zap.Logger
}

// NewMarketDataHandler creates a new market data handler
func NewMarketDataHandler(barRepo *repository.BarRepository, logger *zap.Logger) *MarketDataHandler {
	return &MarketDataHandler{
		barRepo: barRepo,
		logger:  logger,
	}
}

// GetCandles handles GET /api/v1/service/market-data/candles
func (h *MarketDataHandler) GetCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	startDate, err := time.Parse(model.DateLayout, c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, expected YYYY-MM-DD"})
		return
	}
	endDate, err := time.Parse(model.DateLayout, c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date, expected YYYY-MM-DD"})
		return
	}
	if endDate.Before(startDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be after start_date"})
		return
	}

	bars, err := h.barRepo.GetOHLCV(c.Request.Context(), symbol, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get candles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bars": bars, "count": len(bars)})
}

// GetDataRange handles GET /api/v1/service/market-data/range/:symbol
func (h *MarketDataHandler) GetDataRange(c *gin.Context) {
	symbol := c.Param("symbol")

	dataRange, err := h.barRepo.GetDataRange(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get data range"})
		return
	}
	if dataRange == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data for symbol"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"start":  dataRange.Start.Format(model.DateLayout),
		"end":    dataRange.End.Format(model.DateLayout),
	})
}

// ImportBars handles POST /api/v1/service/market-data/bars
func (h *MarketDataHandler) ImportBars(c *gin.Context) {
	var request struct {
		Bars []model.Bar `json:"bars" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.barRepo.InsertBars(c.Request.Context(), request.Bars); err != nil {
		h.logger.Error("Failed to import bars", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import bars"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": len(request.Bars)})
}
