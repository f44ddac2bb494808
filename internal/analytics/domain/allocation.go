package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// AllocationInput 离散股数分配输入
type AllocationInput struct {
	Weights map[string]float64          // 目标权重
	Prices  map[string]decimal.Decimal  // 最新单价
	Budget  decimal.Decimal             // 现金预算
}

// AllocationResult 离散股数分配结果
type AllocationResult struct {
	Shares   map[string]int64 `json:"allocation"` // 资产 -> 整数股数
	Leftover decimal.Decimal  `json:"leftover"`   // 剩余未分配现金，>= 0
}

// ComputeDiscreteAllocation 按目标权重在现金预算内分配整数股数
// 最大余数贪心法：先按 floor(预算·权重/价格) 取底仓，
// 再按小数余量从大到小逐轮补足，每一步都不允许超出剩余预算
func ComputeDiscreteAllocation(in AllocationInput) (*AllocationResult, error) {
	if len(in.Weights) == 0 {
		return nil, NewValidationError("weights", len(in.Weights), "at least 1 asset weight is required")
	}
	if in.Budget.IsNegative() || in.Budget.IsZero() {
		return nil, NewValidationError("budget", in.Budget.String(), "budget must be positive")
	}

	assets := make([]string, 0, len(in.Weights))
	sum := 0.0
	for asset, w := range in.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, NewValidationError(fmt.Sprintf("weights[%s]", asset), w, "weight must be a finite non-negative number")
		}
		price, ok := in.Prices[asset]
		if !ok {
			return nil, NewValidationError(fmt.Sprintf("latest_prices[%s]", asset), nil, "price is missing for weighted asset")
		}
		if price.IsNegative() || price.IsZero() {
			return nil, NewValidationError(fmt.Sprintf("latest_prices[%s]", asset), price.String(), "price must be positive")
		}
		sum += w
		assets = append(assets, asset)
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, NewValidationError("weights", sum, "weights must sum to 1 within 1e-6")
	}
	sort.Strings(assets)

	type candidate struct {
		asset     string
		remainder decimal.Decimal
	}

	shares := make(map[string]int64, len(assets))
	spent := decimal.Zero
	candidates := make([]candidate, 0, len(assets))

	for _, asset := range assets {
		ideal := in.Budget.Mul(decimal.NewFromFloat(in.Weights[asset])).Div(in.Prices[asset])
		base := ideal.Floor()
		shares[asset] = base.IntPart()
		spent = spent.Add(base.Mul(in.Prices[asset]))
		candidates = append(candidates, candidate{asset: asset, remainder: ideal.Sub(base)})
	}
	if spent.GreaterThan(in.Budget) {
		// 浮点权重换算的防御：理论上 floor 分配不会超支
		return nil, NewCalculationError("discrete_allocation", "base allocation exceeds budget")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].remainder.GreaterThan(candidates[j].remainder)
	})

	// 按余量优先逐轮补股，直到一整轮没有任何可负担的买入为止
	leftover := in.Budget.Sub(spent)
	for {
		bought := false
		for _, c := range candidates {
			price := in.Prices[c.asset]
			if price.LessThanOrEqual(leftover) {
				shares[c.asset]++
				leftover = leftover.Sub(price)
				bought = true
			}
		}
		if !bought {
			break
		}
	}

	return &AllocationResult{Shares: shares, Leftover: leftover}, nil
}
