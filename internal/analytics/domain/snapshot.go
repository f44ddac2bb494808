package domain

import (
	"time"

	"gorm.io/gorm"
)

// RiskSnapshot 风险指标快照实体
// 按组合与时间戳留存一次计算结果，供外部查询与审计
type RiskSnapshot struct {
	gorm.Model
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	PortfolioID    string    `gorm:"column:portfolio_id;type:varchar(36);index;not null" json:"portfolio_id"`
	Confidence     float64   `gorm:"column:confidence;type:decimal(5,4);not null" json:"confidence"`
	RiskFreeRate   float64   `gorm:"column:risk_free_rate;type:decimal(10,6);not null" json:"risk_free_rate"`
	ExpectedReturn float64   `gorm:"column:expected_return;type:decimal(20,10);not null" json:"expected_return"`
	Volatility     float64   `gorm:"column:volatility;type:decimal(20,10);not null" json:"volatility"`
	ValueAtRisk    float64   `gorm:"column:value_at_risk;type:decimal(20,10);not null" json:"value_at_risk"`
	ConditionalVaR float64   `gorm:"column:conditional_var;type:decimal(20,10);not null" json:"conditional_var"`
	SharpeRatio    float64   `gorm:"column:sharpe_ratio;type:decimal(20,10);not null" json:"sharpe_ratio"`
	MaxDrawdown    float64   `gorm:"column:max_drawdown;type:decimal(20,10);not null" json:"max_drawdown"`
	ComputedAt     time.Time `gorm:"column:computed_at;index;not null" json:"computed_at"`
}

// TableName 指定表名
func (RiskSnapshot) TableName() string {
	return "risk_snapshots"
}

// FrontierSnapshot 有效前沿快照实体
// 前沿点序列以 JSON 形式整体留存
type FrontierSnapshot struct {
	gorm.Model
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	PortfolioID string    `gorm:"column:portfolio_id;type:varchar(36);index;not null" json:"portfolio_id"`
	Points      string    `gorm:"column:points;type:json;not null" json:"points"`
	MinWeight   float64   `gorm:"column:min_weight;type:decimal(5,4);not null" json:"min_weight"`
	MaxWeight   float64   `gorm:"column:max_weight;type:decimal(5,4);not null" json:"max_weight"`
	ComputedAt  time.Time `gorm:"column:computed_at;index;not null" json:"computed_at"`
}

// TableName 指定表名
func (FrontierSnapshot) TableName() string {
	return "frontier_snapshots"
}
