package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDays 年化因子（交易日数）
// 仅用于有效前沿构建；标量风险指标一律按原始周期收益率计算
const TradingDays = 252

// ReturnSeries 周期收益率序列（例如日收益率）
// 校验通过后不可变；顺序有意义（回撤等指标依赖时间顺序）
type ReturnSeries []float64

// NewReturnSeries 校验并构造收益率序列
// 要求至少 2 个观测值且全部为有限数
func NewReturnSeries(field string, values []float64) (ReturnSeries, error) {
	if len(values) < 2 {
		return nil, NewValidationError(field, len(values), "at least 2 return observations are required")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, NewValidationError(fmt.Sprintf("%s[%d]", field, i), v, "return must be a finite number")
		}
	}
	out := make(ReturnSeries, len(values))
	copy(out, values)
	return out, nil
}

// Mean 均值
func (rs ReturnSeries) Mean() float64 {
	return stat.Mean(rs, nil)
}

// PopStd 总体标准差（除数为 n）
func (rs ReturnSeries) PopStd() float64 {
	return stat.PopStdDev(rs, nil)
}

// ValidateConfidence 校验置信水平，必须落在开区间 (0,1)
func ValidateConfidence(confidence float64) error {
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return NewValidationError("confidence", confidence, "confidence must be strictly between 0 and 1")
	}
	return nil
}

// ValidateRiskFreeRate 校验无风险利率，必须为有限数（符号不限）
func ValidateRiskFreeRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return NewValidationError("risk_free_rate", rate, "risk-free rate must be a finite number")
	}
	return nil
}

// ValidateWeightBounds 校验权重边界
// 两端都必须在 [0,1] 内且 min <= max
func ValidateWeightBounds(minWeight, maxWeight float64) error {
	if math.IsNaN(minWeight) || minWeight < 0 || minWeight > 1 {
		return NewValidationError("min_weight", minWeight, "min_weight must be within [0,1]")
	}
	if math.IsNaN(maxWeight) || maxWeight < 0 || maxWeight > 1 {
		return NewValidationError("max_weight", maxWeight, "max_weight must be within [0,1]")
	}
	if minWeight > maxWeight {
		return NewValidationError("min_weight", minWeight, "min_weight must not exceed max_weight")
	}
	return nil
}

// ValidateFrontierPoints 校验有效前沿点数，必须落在 [2,100]
func ValidateFrontierPoints(points int) error {
	if points < 2 || points > 100 {
		return NewValidationError("points", points, "frontier points must be within [2,100]")
	}
	return nil
}
