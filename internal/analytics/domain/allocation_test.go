package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiscreteAllocationExactFit(t *testing.T) {
	result, err := ComputeDiscreteAllocation(AllocationInput{
		Weights: map[string]float64{"AAA": 0.6, "BBB": 0.4},
		Prices: map[string]decimal.Decimal{
			"AAA": decimal.NewFromInt(10),
			"BBB": decimal.NewFromInt(5),
		},
		Budget: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(60), result.Shares["AAA"])
	assert.Equal(t, int64(80), result.Shares["BBB"])
	assert.True(t, result.Leftover.IsZero(), "leftover = %s", result.Leftover)
}

func TestComputeDiscreteAllocationRemainderFill(t *testing.T) {
	result, err := ComputeDiscreteAllocation(AllocationInput{
		Weights: map[string]float64{"AAA": 0.5, "BBB": 0.5},
		Prices: map[string]decimal.Decimal{
			"AAA": decimal.NewFromInt(30),
			"BBB": decimal.NewFromInt(7),
		},
		Budget: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// 底仓 1×30 + 7×7 = 79，余 21 按余量贪心补 3 股 BBB
	assert.Equal(t, int64(1), result.Shares["AAA"])
	assert.Equal(t, int64(10), result.Shares["BBB"])
	assert.True(t, result.Leftover.IsZero(), "leftover = %s", result.Leftover)
}

func TestComputeDiscreteAllocationNeverExceedsBudget(t *testing.T) {
	budget := decimal.NewFromFloat(987.65)
	prices := map[string]decimal.Decimal{
		"AAA": decimal.NewFromFloat(123.45),
		"BBB": decimal.NewFromFloat(67.89),
		"CCC": decimal.NewFromFloat(11.11),
	}
	result, err := ComputeDiscreteAllocation(AllocationInput{
		Weights: map[string]float64{"AAA": 0.5, "BBB": 0.3, "CCC": 0.2},
		Prices:  prices,
		Budget:  budget,
	})
	require.NoError(t, err)

	spent := decimal.Zero
	for asset, shares := range result.Shares {
		assert.GreaterOrEqual(t, shares, int64(0))
		spent = spent.Add(prices[asset].Mul(decimal.NewFromInt(shares)))
	}
	assert.True(t, spent.Add(result.Leftover).Equal(budget), "spent %s + leftover %s != budget %s", spent, result.Leftover, budget)
	assert.False(t, result.Leftover.IsNegative())
	assert.True(t, spent.LessThanOrEqual(budget))
}

func TestComputeDiscreteAllocationValidation(t *testing.T) {
	valid := AllocationInput{
		Weights: map[string]float64{"AAA": 1.0},
		Prices:  map[string]decimal.Decimal{"AAA": decimal.NewFromInt(10)},
		Budget:  decimal.NewFromInt(100),
	}

	tests := []struct {
		name   string
		mutate func(*AllocationInput)
	}{
		{"empty weights", func(in *AllocationInput) { in.Weights = nil }},
		{"zero budget", func(in *AllocationInput) { in.Budget = decimal.Zero }},
		{"negative budget", func(in *AllocationInput) { in.Budget = decimal.NewFromInt(-1) }},
		{"missing price", func(in *AllocationInput) { in.Prices = map[string]decimal.Decimal{} }},
		{"zero price", func(in *AllocationInput) {
			in.Prices = map[string]decimal.Decimal{"AAA": decimal.Zero}
		}},
		{"negative weight", func(in *AllocationInput) {
			in.Weights = map[string]float64{"AAA": -0.5, "BBB": 1.5}
			in.Prices["BBB"] = decimal.NewFromInt(5)
		}},
		{"weights not summing to 1", func(in *AllocationInput) {
			in.Weights = map[string]float64{"AAA": 0.7}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := AllocationInput{
				Weights: map[string]float64{},
				Prices:  map[string]decimal.Decimal{},
				Budget:  valid.Budget,
			}
			for k, v := range valid.Weights {
				in.Weights[k] = v
			}
			for k, v := range valid.Prices {
				in.Prices[k] = v
			}
			tt.mutate(&in)

			_, err := ComputeDiscreteAllocation(in)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}
