package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/backtest"
	"github.com/yourorg/backtest-service/internal/model"
	"github.com/yourorg/backtest-service/internal/service"
	"github.com/yourorg/backtest-service/internal/strategy"
)

// BacktestHandler handles backtest-related HTTP requests
type BacktestHandler struct {
	backtestService *service.BacktestService
	logger          *zap.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(backtestService *service.BacktestService, logger *zap.Logger) *BacktestHandler {
	return &BacktestHandler{
		backtestService: backtestService,
		logger:          logger,
	}
}

// RunBacktest handles POST /api/v1/backtests. The run executes
// synchronously and the complete result is returned in the response.
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var request model.BacktestRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.backtestService.RunBacktest(c.Request.Context(), &request)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, strategy.ErrUnknown):
			status = http.StatusBadRequest
		case errors.Is(err, backtest.ErrStrategyExecution):
			status = http.StatusUnprocessableEntity
		}
		h.logger.Error("Backtest run failed",
			zap.String("strategy", request.StrategyName),
			zap.Error(err))
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBacktest handles GET /api/v1/backtests/:id
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	backtestID := c.Param("id")

	result, err := h.backtestService.GetBacktest(c.Request.Context(), backtestID)
	if err != nil {
		h.logger.Error("Failed to get backtest",
			zap.String("backtest_id", backtestID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get backtest"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backtest not found"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListBacktests handles GET /api/v1/backtests
func (h *BacktestHandler) ListBacktests(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	summaries, total, err := h.backtestService.ListBacktests(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("Failed to list backtests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list backtests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"backtests": summaries,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// DeleteBacktest handles DELETE /api/v1/backtests/:id
func (h *BacktestHandler) DeleteBacktest(c *gin.Context) {
	backtestID := c.Param("id")

	deleted, err := h.backtestService.DeleteBacktest(c.Request.Context(), backtestID)
	if err != nil {
		h.logger.Error("Failed to delete backtest",
			zap.String("backtest_id", backtestID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete backtest"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backtest not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Backtest deleted"})
}
