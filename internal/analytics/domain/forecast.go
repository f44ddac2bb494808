package domain

import "context"

// VolatilityForecaster 波动率预测器
// 可插拔的数值估计器（例如外部 GARCH(1,1) 服务），
// 模拟输入里提供该估计时可替代样本标准差
type VolatilityForecaster interface {
	// ForecastVolatility 预测给定期数上的波动率
	ForecastVolatility(ctx context.Context, returns ReturnSeries, horizon int) (float64, error)
}
