package domain

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// RiskAssessment 风险指标汇总
// 按请求生成的值对象，创建后不再修改
type RiskAssessment struct {
	ExpectedReturn float64 `json:"expected_return"` // 期望收益（均值）
	Volatility     float64 `json:"volatility"`      // 波动率（总体标准差）
	ValueAtRisk    float64 `json:"value_at_risk"`   // 参数法 VaR（左尾阈值，通常为负）
	ConditionalVaR float64 `json:"conditional_var"` // 条件 VaR / 预期亏损
	SharpeRatio    float64 `json:"sharpe_ratio"`    // 夏普比率
	MaxDrawdown    float64 `json:"max_drawdown"`    // 最大回撤（<= 0）
}

// ValueAtRisk 计算参数法（高斯）VaR
// VaR = mean + Φ⁻¹(1-confidence) · popStd
// confidence > 0.5 时 z 分数为负，结果是左尾阈值
func ValueAtRisk(rs ReturnSeries, confidence float64) (float64, error) {
	if err := ValidateConfidence(confidence); err != nil {
		return 0, err
	}
	if len(rs) < 2 {
		return 0, NewValidationError("returns", len(rs), "at least 2 return observations are required")
	}

	z := distuv.UnitNormal.Quantile(1 - confidence)
	return rs.Mean() + z*rs.PopStd(), nil
}

// ConditionalVaR 计算条件 VaR（Expected Shortfall）
// 对所有不超过 VaR 的收益取均值；小样本下尾部可能为空，此时退化为 VaR 本身
func ConditionalVaR(rs ReturnSeries, confidence float64) (float64, error) {
	varValue, err := ValueAtRisk(rs, confidence)
	if err != nil {
		return 0, err
	}

	var sum float64
	var count int
	for _, r := range rs {
		if r <= varValue {
			sum += r
			count++
		}
	}
	if count == 0 {
		return varValue, nil
	}
	return sum / float64(count), nil
}

// SharpeRatio 计算夏普比率
// 超额收益标准差为 0 时约定结果为 0，而不是报错或返回无穷
func SharpeRatio(rs ReturnSeries, riskFreeRate float64) (float64, error) {
	if err := ValidateRiskFreeRate(riskFreeRate); err != nil {
		return 0, err
	}
	if len(rs) < 2 {
		return 0, NewValidationError("returns", len(rs), "at least 2 return observations are required")
	}

	excess := make(ReturnSeries, len(rs))
	for i, r := range rs {
		excess[i] = r - riskFreeRate
	}

	std := excess.PopStd()
	if std == 0 {
		return 0, nil
	}
	return excess.Mean() / std, nil
}

// MaxDrawdown 计算最大回撤
// 按 v0=1, vt=vt-1·(1+rt) 复利构建价值路径，跟踪历史峰值
// 结果 <= 0；路径单调不减时恰好为 0
func MaxDrawdown(rs ReturnSeries) (float64, error) {
	if len(rs) < 2 {
		return 0, NewValidationError("returns", len(rs), "at least 2 return observations are required")
	}

	value := 1.0
	peak := 1.0
	maxDD := 0.0

	for _, r := range rs {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		dd := (value - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD, nil
}

// PortfolioMetrics 计算风险指标汇总
func PortfolioMetrics(rs ReturnSeries, confidence, riskFreeRate float64) (*RiskAssessment, error) {
	varValue, err := ValueAtRisk(rs, confidence)
	if err != nil {
		return nil, err
	}
	cvar, err := ConditionalVaR(rs, confidence)
	if err != nil {
		return nil, err
	}
	sharpe, err := SharpeRatio(rs, riskFreeRate)
	if err != nil {
		return nil, err
	}
	maxDD, err := MaxDrawdown(rs)
	if err != nil {
		return nil, err
	}

	return &RiskAssessment{
		ExpectedReturn: rs.Mean(),
		Volatility:     rs.PopStd(),
		ValueAtRisk:    varValue,
		ConditionalVaR: cvar,
		SharpeRatio:    sharpe,
		MaxDrawdown:    maxDD,
	}, nil
}
