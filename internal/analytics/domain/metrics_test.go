package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleReturns = []float64{0.01, -0.02, 0.03, -0.01, 0.02, 0.005, -0.005}

func TestValueAtRisk(t *testing.T) {
	rs, err := NewReturnSeries("returns", sampleReturns)
	require.NoError(t, err)

	v95, err := ValueAtRisk(rs, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, -0.02225, v95, 1e-4)

	v99, err := ValueAtRisk(rs, 0.99)
	require.NoError(t, err)
	assert.InDelta(t, -0.03324, v99, 1e-4)

	// 置信水平越高，左尾阈值越深
	assert.Less(t, v99, v95)
}

func TestValueAtRiskBoundaryRejections(t *testing.T) {
	rs, err := NewReturnSeries("returns", sampleReturns)
	require.NoError(t, err)

	tests := []struct {
		name       string
		returns    ReturnSeries
		confidence float64
	}{
		{"confidence exactly 1", rs, 1.0},
		{"confidence exactly 0", rs, 0.0},
		{"confidence above 1", rs, 1.5},
		{"confidence NaN", rs, math.NaN()},
		{"single observation", ReturnSeries{0.01}, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValueAtRisk(tt.returns, tt.confidence)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestConditionalVaRNotAboveVaR(t *testing.T) {
	series := [][]float64{
		sampleReturns,
		{0.05, -0.08, 0.02, -0.03, 0.01, 0.04, -0.06, 0.0},
		{-0.01, -0.02, -0.03, -0.04},
		{0.001, 0.002, 0.003, 0.004},
	}
	confidences := []float64{0.9, 0.95, 0.99}

	for _, values := range series {
		rs, err := NewReturnSeries("returns", values)
		require.NoError(t, err)
		for _, c := range confidences {
			varValue, err := ValueAtRisk(rs, c)
			require.NoError(t, err)
			cvar, err := ConditionalVaR(rs, c)
			require.NoError(t, err)
			assert.LessOrEqual(t, cvar, varValue, "cvar must be at least as bad as var (confidence %v)", c)
		}
	}
}

func TestSharpeRatio(t *testing.T) {
	rs, err := NewReturnSeries("returns", sampleReturns)
	require.NoError(t, err)

	sharpe, err := SharpeRatio(rs, 0.0)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(sharpe))
	assert.False(t, math.IsInf(sharpe, 0))
	assert.Positive(t, sharpe)

	// 任意无风险利率下结果都是有限数
	for _, rf := range []float64{-0.05, 0.0, 0.001, 0.5} {
		s, err := SharpeRatio(rs, rf)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(s))
		assert.False(t, math.IsInf(s, 0))
	}
}

func TestSharpeRatioZeroVariance(t *testing.T) {
	// 所有收益都等于无风险利率时，超额收益方差为 0，约定结果为 0
	rf := 0.01
	rs, err := NewReturnSeries("returns", []float64{rf, rf, rf, rf})
	require.NoError(t, err)

	sharpe, err := SharpeRatio(rs, rf)
	require.NoError(t, err)
	assert.Zero(t, sharpe)
}

func TestMaxDrawdown(t *testing.T) {
	rs, err := NewReturnSeries("returns", []float64{0.1, -0.5, 0.2})
	require.NoError(t, err)

	dd, err := MaxDrawdown(rs)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, dd, 1e-12)
}

func TestMaxDrawdownNonDecreasingPath(t *testing.T) {
	rs, err := NewReturnSeries("returns", []float64{0.0, 0.01, 0.02, 0.0})
	require.NoError(t, err)

	dd, err := MaxDrawdown(rs)
	require.NoError(t, err)
	assert.Zero(t, dd)
}

func TestMaxDrawdownNeverPositive(t *testing.T) {
	series := [][]float64{
		sampleReturns,
		{0.2, 0.3, -0.1, 0.4},
		{-0.3, -0.2, 0.5, 0.1},
	}
	for _, values := range series {
		rs, err := NewReturnSeries("returns", values)
		require.NoError(t, err)
		dd, err := MaxDrawdown(rs)
		require.NoError(t, err)
		assert.LessOrEqual(t, dd, 0.0)
	}
}

func TestPortfolioMetrics(t *testing.T) {
	rs, err := NewReturnSeries("returns", sampleReturns)
	require.NoError(t, err)

	result, err := PortfolioMetrics(rs, 0.95, 0.0)
	require.NoError(t, err)

	assert.InDelta(t, rs.Mean(), result.ExpectedReturn, 1e-12)
	assert.InDelta(t, rs.PopStd(), result.Volatility, 1e-12)
	assert.InDelta(t, -0.02225, result.ValueAtRisk, 1e-4)
	assert.LessOrEqual(t, result.ConditionalVaR, result.ValueAtRisk)
	assert.LessOrEqual(t, result.MaxDrawdown, 0.0)
}

func TestNewReturnSeriesValidation(t *testing.T) {
	_, err := NewReturnSeries("returns", []float64{0.01})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "returns", validationErr.Field)

	_, err = NewReturnSeries("returns", []float64{0.01, math.NaN()})
	require.ErrorAs(t, err, &validationErr)

	_, err = NewReturnSeries("returns", []float64{0.01, math.Inf(1)})
	require.ErrorAs(t, err, &validationErr)

	rs, err := NewReturnSeries("returns", []float64{0.01, 0.02})
	require.NoError(t, err)
	assert.Len(t, rs, 2)
}
