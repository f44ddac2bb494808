package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frontierTestReturns() map[string]ReturnSeries {
	return map[string]ReturnSeries{
		"AAA": {0.010, 0.012, 0.008, 0.011, 0.009, 0.010, 0.012, 0.008},
		"BBB": {0.020, -0.010, 0.030, 0.000, 0.025, -0.005, 0.030, 0.010},
		"CCC": {0.001, 0.002, 0.000, 0.001, 0.0015, 0.001, 0.002, 0.0005},
	}
}

func TestEfficientFrontierInvariants(t *testing.T) {
	o := NewOptimizer()
	points, err := o.EfficientFrontier(FrontierInput{
		Returns:      frontierTestReturns(),
		MinWeight:    0.0,
		MaxWeight:    1.0,
		RiskFreeRate: 0.0,
		Points:       10,
	})
	require.NoError(t, err)
	require.Len(t, points, 10)

	var minVolCount, maxSharpeCount int
	var minVolVolatility float64
	for _, p := range points {
		switch p.Type {
		case PointMinVolatility:
			minVolCount++
			minVolVolatility = p.Volatility
		case PointMaxSharpe:
			maxSharpeCount++
		}

		sum := 0.0
		for asset, w := range p.Weights {
			assert.GreaterOrEqual(t, w, -1e-9, "weight of %s below lower bound", asset)
			assert.LessOrEqual(t, w, 1+1e-9, "weight of %s above upper bound", asset)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "weights must sum to 1")
	}
	assert.Equal(t, 1, minVolCount, "exactly one min_volatility point")
	assert.Equal(t, 1, maxSharpeCount, "exactly one max_sharpe point")

	// 最小方差点的波动率不高于任何其他前沿点
	for _, p := range points {
		assert.LessOrEqual(t, minVolVolatility, p.Volatility+1e-8)
	}

	// 前沿按波动率升序排列
	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i-1].Volatility, points[i].Volatility+1e-12)
	}
}

func TestEfficientFrontierBoundedWeights(t *testing.T) {
	o := NewOptimizer()
	lo, hi := 0.1, 0.6
	points, err := o.EfficientFrontier(FrontierInput{
		Returns:      frontierTestReturns(),
		MinWeight:    lo,
		MaxWeight:    hi,
		RiskFreeRate: 0.0,
		Points:       5,
	})
	require.NoError(t, err)
	require.Len(t, points, 5)

	for _, p := range points {
		sum := 0.0
		for _, w := range p.Weights {
			assert.GreaterOrEqual(t, w, lo-1e-6)
			assert.LessOrEqual(t, w, hi+1e-6)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
}

func TestEfficientFrontierTwoPoints(t *testing.T) {
	o := NewOptimizer()
	points, err := o.EfficientFrontier(FrontierInput{
		Returns:      frontierTestReturns(),
		MinWeight:    0.0,
		MaxWeight:    1.0,
		RiskFreeRate: 0.0,
		Points:       2,
	})
	require.NoError(t, err)
	require.Len(t, points, 2)
	types := map[FrontierPointType]bool{points[0].Type: true, points[1].Type: true}
	assert.True(t, types[PointMinVolatility])
	assert.True(t, types[PointMaxSharpe])
}

func TestEfficientFrontierInfeasibleBounds(t *testing.T) {
	o := NewOptimizer()
	// 3 个资产，下界 0.6 不可行（0.6 × 3 > 1）
	_, err := o.EfficientFrontier(FrontierInput{
		Returns:      frontierTestReturns(),
		MinWeight:    0.6,
		MaxWeight:    0.8,
		RiskFreeRate: 0.0,
		Points:       5,
	})
	var calcErr *CalculationError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, "efficient_frontier", calcErr.Op)
}

func TestEfficientFrontierInvertedBounds(t *testing.T) {
	o := NewOptimizer()
	_, err := o.EfficientFrontier(FrontierInput{
		Returns:      frontierTestReturns(),
		MinWeight:    0.6,
		MaxWeight:    0.4,
		RiskFreeRate: 0.0,
		Points:       5,
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestEfficientFrontierSingularCovariance(t *testing.T) {
	o := NewOptimizer()
	// 两个完全相同的序列导致协方差矩阵奇异
	identical := ReturnSeries{0.01, -0.02, 0.03, -0.01, 0.02}
	_, err := o.EfficientFrontier(FrontierInput{
		Returns: map[string]ReturnSeries{
			"AAA": identical,
			"BBB": identical,
		},
		MinWeight:    0.0,
		MaxWeight:    1.0,
		RiskFreeRate: 0.0,
		Points:       3,
	})
	var calcErr *CalculationError
	require.ErrorAs(t, err, &calcErr)
}

func TestEfficientFrontierValidation(t *testing.T) {
	o := NewOptimizer()

	tests := []struct {
		name  string
		input FrontierInput
	}{
		{
			"too few assets",
			FrontierInput{
				Returns:   map[string]ReturnSeries{"AAA": {0.01, 0.02}},
				MaxWeight: 1.0, Points: 5,
			},
		},
		{
			"misaligned series",
			FrontierInput{
				Returns: map[string]ReturnSeries{
					"AAA": {0.01, 0.02, 0.03},
					"BBB": {0.01, 0.02},
				},
				MaxWeight: 1.0, Points: 5,
			},
		},
		{
			"points below range",
			FrontierInput{Returns: frontierTestReturns(), MaxWeight: 1.0, Points: 1},
		},
		{
			"points above range",
			FrontierInput{Returns: frontierTestReturns(), MaxWeight: 1.0, Points: 101},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.EfficientFrontier(tt.input)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}
