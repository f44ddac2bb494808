package domain

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SimulationInput 蒙特卡洛模拟输入
// MeanReturn/StdDev 为单期组合收益参数，可由调用方直接给出，
// 也可用 BlendPortfolioStats 从各资产历史序列按权重合成
type SimulationInput struct {
	MeanReturn     float64 // 单期期望收益
	StdDev         float64 // 单期标准差，>= 0
	NumSimulations int     // 模拟路径数
	Horizon        int     // 期数
	InitialValue   float64 // 初始组合价值
	Seed           uint64  // 随机种子
	Seeded         bool    // 是否使用固定种子
}

// SimulationResult 蒙特卡洛模拟结果
type SimulationResult struct {
	ExpectedFinalValue float64            `json:"expected_final_value"`
	VaR95              float64            `json:"var_95"`       // 初始价值 - 终值 5 分位
	VaR99              float64            `json:"var_99"`       // 初始价值 - 终值 1 分位
	MaxDrawdown        float64            `json:"max_drawdown"` // 各路径最大回撤的均值，<= 0
	Percentiles        map[string]float64 `json:"percentiles"`  // 终值分位数 p5/p25/p50/p75/p95
}

// Simulator 蒙特卡洛组合价值模拟器
// 无内部状态，可被任意数量调用方并发使用
type Simulator struct{}

// NewSimulator 创建模拟器
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Run 执行蒙特卡洛模拟
// 每条路径独立持有一个 PCG 生成器，流键为路径编号，
// 固定种子时结果与调度顺序无关、逐比特可复现。
// ctx 取消时整个模拟失败返回，不产出部分结果
func (s *Simulator) Run(ctx context.Context, in SimulationInput) (*SimulationResult, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	seed := in.Seed
	if !in.Seeded {
		seed = rand.Uint64()
	}

	terminals := make([]float64, in.NumSimulations)
	drawdowns := make([]float64, in.NumSimulations)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for p := 0; p < in.NumSimulations; p++ {
		path := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(path)+1))

			value := in.InitialValue
			peak := in.InitialValue
			maxDD := 0.0
			for t := 0; t < in.Horizon; t++ {
				r := in.MeanReturn + in.StdDev*rng.NormFloat64()
				value *= 1 + r
				if value > peak {
					peak = value
				}
				if dd := (value - peak) / peak; dd < maxDD {
					maxDD = dd
				}
			}
			terminals[path] = value
			drawdowns[path] = maxDD
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monte carlo simulation aborted: %w", err)
	}

	sorted := make([]float64, len(terminals))
	copy(sorted, terminals)
	sort.Float64s(sorted)

	quantile := func(p float64) float64 {
		return stat.Quantile(p, stat.Empirical, sorted, nil)
	}

	return &SimulationResult{
		ExpectedFinalValue: stat.Mean(terminals, nil),
		VaR95:              in.InitialValue - quantile(0.05),
		VaR99:              in.InitialValue - quantile(0.01),
		MaxDrawdown:        stat.Mean(drawdowns, nil),
		Percentiles: map[string]float64{
			"p5":  quantile(0.05),
			"p25": quantile(0.25),
			"p50": quantile(0.50),
			"p75": quantile(0.75),
			"p95": quantile(0.95),
		},
	}, nil
}

func (s *Simulator) validate(in SimulationInput) error {
	if math.IsNaN(in.MeanReturn) || math.IsInf(in.MeanReturn, 0) {
		return NewValidationError("mean_return", in.MeanReturn, "mean return must be a finite number")
	}
	if math.IsNaN(in.StdDev) || math.IsInf(in.StdDev, 0) || in.StdDev < 0 {
		return NewValidationError("std_dev", in.StdDev, "standard deviation must be a finite non-negative number")
	}
	if in.NumSimulations < 1 {
		return NewValidationError("num_simulations", in.NumSimulations, "at least 1 simulation path is required")
	}
	if in.Horizon < 1 {
		return NewValidationError("horizon", in.Horizon, "horizon must be at least 1 step")
	}
	if math.IsNaN(in.InitialValue) || math.IsInf(in.InitialValue, 0) || in.InitialValue <= 0 {
		return NewValidationError("initial_value", in.InitialValue, "initial value must be a finite positive number")
	}
	return nil
}

// alignWeightedSeries 校验权重与序列的对齐关系
// 返回按资产名排序的资产列表与观测期数
func alignWeightedSeries(weights map[string]float64, returns map[string]ReturnSeries) ([]string, int, error) {
	if len(weights) == 0 {
		return nil, 0, NewValidationError("weights", len(weights), "at least 1 asset weight is required")
	}

	assets := make([]string, 0, len(weights))
	sum := 0.0
	obs := -1
	for asset, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, 0, NewValidationError(fmt.Sprintf("weights[%s]", asset), w, "weight must be a finite non-negative number")
		}
		rs, ok := returns[asset]
		if !ok {
			return nil, 0, NewValidationError(fmt.Sprintf("returns_by_asset[%s]", asset), nil, "return series is missing for weighted asset")
		}
		if len(rs) < 2 {
			return nil, 0, NewValidationError(fmt.Sprintf("returns_by_asset[%s]", asset), len(rs), "at least 2 return observations are required")
		}
		if obs == -1 {
			obs = len(rs)
		} else if len(rs) != obs {
			return nil, 0, NewValidationError(fmt.Sprintf("returns_by_asset[%s]", asset), len(rs),
				fmt.Sprintf("series length must match other assets (%d)", obs))
		}
		sum += w
		assets = append(assets, asset)
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, 0, NewValidationError("weights", sum, "weights must sum to 1 within 1e-6")
	}
	sort.Strings(assets)
	return assets, obs, nil
}

// BlendPortfolioStats 按权重把各资产历史序列合成为单期组合均值与标准差
// 均值为 wᵀμ，方差为 wᵀΣw（样本协方差，单期口径，不做年化）
func BlendPortfolioStats(weights map[string]float64, returns map[string]ReturnSeries) (float64, float64, error) {
	assets, obs, err := alignWeightedSeries(weights, returns)
	if err != nil {
		return 0, 0, err
	}

	n := len(assets)
	w := make([]float64, n)
	samples := mat.NewDense(obs, n, nil)
	mean := 0.0
	for j, asset := range assets {
		rs := returns[asset]
		w[j] = weights[asset]
		mean += w[j] * rs.Mean()
		for i, r := range rs {
			samples.Set(i, j, r)
		}
	}

	sigma := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(sigma, samples, nil)

	variance := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += w[i] * sigma.At(i, j) * w[j]
		}
	}
	return mean, math.Sqrt(math.Max(variance, 0)), nil
}

// PortfolioReturnSeries 按权重把各资产序列逐期合成为组合收益序列
// 供外部波动率预测器等需要单一序列的估计器使用
func PortfolioReturnSeries(weights map[string]float64, returns map[string]ReturnSeries) (ReturnSeries, error) {
	assets, obs, err := alignWeightedSeries(weights, returns)
	if err != nil {
		return nil, err
	}

	blended := make(ReturnSeries, obs)
	for _, asset := range assets {
		w := weights[asset]
		for i, r := range returns[asset] {
			blended[i] += w * r
		}
	}
	return blended, nil
}
