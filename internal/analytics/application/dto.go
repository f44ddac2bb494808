// 包 组合风险分析服务的用例逻辑、DTO 与缓存编排
package application

import (
	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
)

// 各参数的默认值，请求未给出时采用
// 字段用指针区分"未给出"（取默认值）与"显式给出非法值"（校验拒绝）
const (
	DefaultConfidence     = 0.95
	DefaultRiskFreeRate   = 0.0
	DefaultMaxWeight      = 1.0
	DefaultFrontierPoints = 20
	DefaultSimulations    = 1000
	DefaultHorizon        = 252
)

// VaRRequest VaR 计算请求 DTO
type VaRRequest struct {
	PortfolioID string    `json:"portfolio_id"`
	Returns     []float64 `json:"returns" binding:"required"`
	Confidence  *float64  `json:"confidence"`
}

func (r *VaRRequest) confidence() float64 {
	if r.Confidence == nil {
		return DefaultConfidence
	}
	return *r.Confidence
}

// SharpeRequest 夏普比率计算请求 DTO
type SharpeRequest struct {
	PortfolioID  string    `json:"portfolio_id"`
	Returns      []float64 `json:"returns" binding:"required"`
	RiskFreeRate float64   `json:"risk_free_rate"`
}

// DrawdownRequest 最大回撤计算请求 DTO
type DrawdownRequest struct {
	PortfolioID string    `json:"portfolio_id"`
	Returns     []float64 `json:"returns" binding:"required"`
}

// MetricsRequest 风险指标汇总请求 DTO
type MetricsRequest struct {
	PortfolioID  string    `json:"portfolio_id"`
	Returns      []float64 `json:"returns" binding:"required"`
	Confidence   *float64  `json:"confidence"`
	RiskFreeRate float64   `json:"risk_free_rate"`
}

func (r *MetricsRequest) confidence() float64 {
	if r.Confidence == nil {
		return DefaultConfidence
	}
	return *r.Confidence
}

// FrontierRequest 有效前沿计算请求 DTO
type FrontierRequest struct {
	PortfolioID    string               `json:"portfolio_id"`
	ReturnsByAsset map[string][]float64 `json:"returns_by_asset" binding:"required"`
	MinWeight      float64              `json:"min_weight"`
	MaxWeight      *float64             `json:"max_weight"`
	RiskFreeRate   float64              `json:"risk_free_rate"`
	Points         *int                 `json:"points"`
}

func (r *FrontierRequest) maxWeight() float64 {
	if r.MaxWeight == nil {
		return DefaultMaxWeight
	}
	return *r.MaxWeight
}

func (r *FrontierRequest) points() int {
	if r.Points == nil {
		return DefaultFrontierPoints
	}
	return *r.Points
}

// AllocationRequest 离散股数分配请求 DTO
type AllocationRequest struct {
	PortfolioID  string             `json:"portfolio_id"`
	Weights      map[string]float64 `json:"weights" binding:"required"`
	LatestPrices map[string]float64 `json:"latest_prices" binding:"required"`
	Budget       float64            `json:"budget" binding:"required"`
}

// MonteCarloRequest 蒙特卡洛模拟请求 DTO
// 组合收益参数二选一：直接给出 mean_return/std_dev，
// 或给出 weights + returns_by_asset 由服务按权重合成
type MonteCarloRequest struct {
	PortfolioID    string               `json:"portfolio_id"`
	Weights        map[string]float64   `json:"weights"`
	ReturnsByAsset map[string][]float64 `json:"returns_by_asset"`
	MeanReturn     *float64             `json:"mean_return"`
	StdDev         *float64             `json:"std_dev"`
	NumSimulations *int                 `json:"num_simulations"`
	Horizon        *int                 `json:"horizon"`
	InitialValue   float64              `json:"initial_value" binding:"required"`
	Seed           *uint64              `json:"seed"`
}

func (r *MonteCarloRequest) numSimulations() int {
	if r.NumSimulations == nil {
		return DefaultSimulations
	}
	return *r.NumSimulations
}

func (r *MonteCarloRequest) horizon() int {
	if r.Horizon == nil {
		return DefaultHorizon
	}
	return *r.Horizon
}

// ScalarResult 单值计算结果 DTO
type ScalarResult struct {
	Value float64 `json:"value"`
}

// SnapshotsResult 快照查询结果 DTO
type SnapshotsResult struct {
	Risk     []*domain.RiskSnapshot     `json:"risk"`
	Frontier []*domain.FrontierSnapshot `json:"frontier"`
}
