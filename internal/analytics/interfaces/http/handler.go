// 包 分析服务的 HTTP 接口层，负责路由注册、参数绑定与错误码映射
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/portfoliorisk/internal/analytics/application"
	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
	"github.com/wyfcoding/portfoliorisk/pkg/response"
)

// AnalyticsHandler 分析服务 HTTP 处理器
type AnalyticsHandler struct {
	service *application.AnalyticsService
}

// NewAnalyticsHandler 创建 HTTP 处理器
func NewAnalyticsHandler(service *application.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *AnalyticsHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/analytics")
	{
		api.POST("/var", h.ComputeVaR)
		api.POST("/cvar", h.ComputeCVaR)
		api.POST("/sharpe", h.ComputeSharpe)
		api.POST("/drawdown", h.ComputeMaxDrawdown)
		api.POST("/metrics", h.ComputePortfolioMetrics)
		api.POST("/frontier", h.ComputeEfficientFrontier)
		api.POST("/allocation", h.ComputeDiscreteAllocation)
		api.POST("/montecarlo", h.RunMonteCarlo)
		api.POST("/invalidate", h.InvalidatePortfolio)
		api.GET("/snapshots", h.ListSnapshots)
		api.DELETE("/snapshots", h.DeleteSnapshots)
	}
}

// ComputeVaR 计算参数法 VaR
func (h *AnalyticsHandler) ComputeVaR(c *gin.Context) {
	var req application.VaRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.ComputeVaR(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// ComputeCVaR 计算条件 VaR
func (h *AnalyticsHandler) ComputeCVaR(c *gin.Context) {
	var req application.VaRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.ComputeCVaR(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// ComputeSharpe 计算夏普比率
func (h *AnalyticsHandler) ComputeSharpe(c *gin.Context) {
	var req application.SharpeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.ComputeSharpe(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// ComputeMaxDrawdown 计算最大回撤
func (h *AnalyticsHandler) ComputeMaxDrawdown(c *gin.Context) {
	var req application.DrawdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.ComputeMaxDrawdown(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// ComputePortfolioMetrics 计算风险指标汇总
func (h *AnalyticsHandler) ComputePortfolioMetrics(c *gin.Context) {
	var req application.MetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.ComputePortfolioMetrics(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// ComputeEfficientFrontier 计算有效前沿
func (h *AnalyticsHandler) ComputeEfficientFrontier(c *gin.Context) {
	var req application.FrontierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.ComputeEfficientFrontier(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// ComputeDiscreteAllocation 计算离散股数分配
func (h *AnalyticsHandler) ComputeDiscreteAllocation(c *gin.Context) {
	var req application.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.ComputeDiscreteAllocation(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// RunMonteCarlo 执行蒙特卡洛模拟
func (h *AnalyticsHandler) RunMonteCarlo(c *gin.Context) {
	var req application.MonteCarloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	result, err := h.service.RunMonteCarlo(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// InvalidatePortfolio 使组合缓存失效
// 供组合持仓写入方在保存、更新或删除后调用
func (h *AnalyticsHandler) InvalidatePortfolio(c *gin.Context) {
	var req struct {
		PortfolioID string `json:"portfolio_id" binding:"required"`
		Reason      string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "portfolio updated"
	}
	if err := h.service.InvalidatePortfolio(c.Request.Context(), req.PortfolioID, req.Reason); err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, gin.H{"portfolio_id": req.PortfolioID})
}

// ListSnapshots 查询组合快照
func (h *AnalyticsHandler) ListSnapshots(c *gin.Context) {
	portfolioID := c.Query("portfolio_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.service.ListSnapshots(c.Request.Context(), portfolioID, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteSnapshots 删除组合快照并使其缓存失效
func (h *AnalyticsHandler) DeleteSnapshots(c *gin.Context) {
	portfolioID := c.Query("portfolio_id")
	if err := h.service.DeleteSnapshots(c.Request.Context(), portfolioID); err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, gin.H{"portfolio_id": portfolioID})
}

// renderError 领域错误到 HTTP 状态码的映射
// ValidationError -> 400，CalculationError -> 422，其余 -> 500
func (h *AnalyticsHandler) renderError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		response.ErrorWithStatus(c, http.StatusBadRequest, "validation failed", validationErr.Error())
		return
	}
	var calcErr *domain.CalculationError
	if errors.As(err, &calcErr) {
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, "calculation failed", calcErr.Error())
		return
	}
	response.ErrorWithStatus(c, http.StatusInternalServerError, "internal error", err.Error())
}
