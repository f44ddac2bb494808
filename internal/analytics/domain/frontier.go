package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FrontierPointType 前沿点类型
type FrontierPointType string

const (
	// PointMinVolatility 全局最小方差组合
	PointMinVolatility FrontierPointType = "min_volatility"
	// PointMaxSharpe 最大夏普组合
	PointMaxSharpe FrontierPointType = "max_sharpe"
	// PointIntermediate 两个极值点之间的中间前沿点
	PointIntermediate FrontierPointType = "intermediate"
)

// FrontierPoint 有效前沿上的一个组合
type FrontierPoint struct {
	Type           FrontierPointType  `json:"type"`
	ExpectedReturn float64            `json:"expected_return"` // 年化期望收益
	Volatility     float64            `json:"volatility"`      // 年化波动率
	SharpeRatio    float64            `json:"sharpe_ratio"`
	Weights        map[string]float64 `json:"weights"`
}

// FrontierInput 有效前沿求解输入
type FrontierInput struct {
	Returns      map[string]ReturnSeries // 资产 -> 收益率序列（长度需对齐）
	MinWeight    float64                 // 单资产权重下界
	MaxWeight    float64                 // 单资产权重上界
	RiskFreeRate float64                 // 无风险利率（周期单位）
	Points       int                     // 前沿点数 [2,100]
}

// Optimizer 均值-方差组合优化器
// 求解器：带精确盒型单纯形投影的投影梯度下降。
// 前沿以风险厌恶参数 γ 刻画（min wᵀΣw − γμᵀw），γ=0 即全局最小方差；
// 目标收益点通过对单调映射 γ→μᵀw(γ) 二分得到；最大夏普点通过对 γ 的
// 黄金分割搜索得到，夏普值相同时取较低波动率一侧。
// 收敛容差 1e-12，权重和与边界约束由投影精确满足。
type Optimizer struct {
	maxIter int
	tol     float64
}

// NewOptimizer 创建优化器
func NewOptimizer() *Optimizer {
	return &Optimizer{
		maxIter: 3000,
		tol:     1e-12,
	}
}

// EfficientFrontier 求解有效前沿
// 返回按波动率升序排列的前沿点，恰好包含一个 min_volatility 和一个 max_sharpe
func (o *Optimizer) EfficientFrontier(in FrontierInput) ([]FrontierPoint, error) {
	if err := ValidateWeightBounds(in.MinWeight, in.MaxWeight); err != nil {
		return nil, err
	}
	if err := ValidateRiskFreeRate(in.RiskFreeRate); err != nil {
		return nil, err
	}
	if err := ValidateFrontierPoints(in.Points); err != nil {
		return nil, err
	}

	assets, mu, sigma, err := buildAssetStats(in.Returns)
	if err != nil {
		return nil, err
	}
	n := len(assets)

	// 约束可行性：n·min <= 1 <= n·max
	if float64(n)*in.MinWeight > 1+1e-9 {
		return nil, NewCalculationError("efficient_frontier",
			fmt.Sprintf("infeasible bounds: min_weight %.4f × %d assets exceeds 1", in.MinWeight, n))
	}
	if float64(n)*in.MaxWeight < 1-1e-9 {
		return nil, NewCalculationError("efficient_frontier",
			fmt.Sprintf("infeasible bounds: max_weight %.4f × %d assets cannot reach 1", in.MaxWeight, n))
	}

	// 奇异协方差矩阵直接拒绝
	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return nil, NewCalculationError("efficient_frontier", "covariance matrix is singular or not positive definite")
	}

	solver := newQPSolver(mu, sigma, in.MinWeight, in.MaxWeight, o.maxIter, o.tol)

	// 全局最小方差组合（γ=0）
	wMinVol := solver.solveRiskAversion(0)
	retMinVol := solver.portfolioReturn(wMinVol)

	// 最大夏普组合
	gammaSharpe, wSharpe := solver.solveMaxSharpe(in.RiskFreeRate)
	retSharpe := solver.portfolioReturn(wSharpe)

	points := make([]FrontierPoint, 0, in.Points)
	points = append(points, solver.makePoint(PointMinVolatility, assets, wMinVol, in.RiskFreeRate))
	points = append(points, solver.makePoint(PointMaxSharpe, assets, wSharpe, in.RiskFreeRate))

	// 中间点：在两个极值收益之间等距扫描目标收益，逐点重解最小方差问题
	if in.Points > 2 {
		spread := retSharpe - retMinVol
		for i := 1; i <= in.Points-2; i++ {
			var w []float64
			if spread <= 1e-12 {
				w = wMinVol
			} else {
				target := retMinVol + spread*float64(i)/float64(in.Points-1)
				w = solver.solveTargetReturn(target, gammaSharpe)
			}
			points = append(points, solver.makePoint(PointIntermediate, assets, w, in.RiskFreeRate))
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Volatility != points[j].Volatility {
			return points[i].Volatility < points[j].Volatility
		}
		return points[i].ExpectedReturn < points[j].ExpectedReturn
	})

	return points, nil
}

// buildAssetStats 计算年化期望收益向量与样本协方差矩阵
// 各序列必须等长（由调用方对齐），协方差除数为 n-1，年化因子 252
func buildAssetStats(returns map[string]ReturnSeries) ([]string, []float64, *mat.SymDense, error) {
	if len(returns) < 2 {
		return nil, nil, nil, NewValidationError("returns_by_asset", len(returns), "at least 2 assets are required")
	}

	assets := make([]string, 0, len(returns))
	for asset := range returns {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	obs := -1
	for _, asset := range assets {
		rs := returns[asset]
		if len(rs) < 2 {
			return nil, nil, nil, NewValidationError(fmt.Sprintf("returns_by_asset[%s]", asset), len(rs),
				"at least 2 return observations are required")
		}
		if obs == -1 {
			obs = len(rs)
		} else if len(rs) != obs {
			return nil, nil, nil, NewValidationError(fmt.Sprintf("returns_by_asset[%s]", asset), len(rs),
				fmt.Sprintf("series length must match other assets (%d)", obs))
		}
	}

	n := len(assets)
	mu := make([]float64, n)
	samples := mat.NewDense(obs, n, nil)
	for j, asset := range assets {
		rs := returns[asset]
		mu[j] = rs.Mean() * TradingDays
		for i, r := range rs {
			samples.Set(i, j, r)
		}
	}

	sigma := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(sigma, samples, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, sigma.At(i, j)*TradingDays)
		}
	}

	return assets, mu, sigma, nil
}

// qpSolver 盒型单纯形约束下的二次规划求解器
type qpSolver struct {
	mu       []float64
	sigma    *mat.SymDense
	lo, hi   float64
	maxIter  int
	tol      float64
	stepSize float64
}

func newQPSolver(mu []float64, sigma *mat.SymDense, lo, hi float64, maxIter int, tol float64) *qpSolver {
	s := &qpSolver{
		mu:      mu,
		sigma:   sigma,
		lo:      lo,
		hi:      hi,
		maxIter: maxIter,
		tol:     tol,
	}
	// 步长取 1/L，L 为目标函数梯度的 Lipschitz 常数（2λmax(Σ)）
	s.stepSize = 1 / (2*s.maxEigenvalue() + 1e-12)
	return s
}

// maxEigenvalue 幂迭代估计最大特征值
func (s *qpSolver) maxEigenvalue() float64 {
	n := len(s.mu)
	v := make([]float64, n)
	for i := range v {
		v[i] = 1 / math.Sqrt(float64(n))
	}
	lambda := 0.0
	for iter := 0; iter < 50; iter++ {
		next := s.matVec(v)
		norm := 0.0
		for _, x := range next {
			norm += x * x
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			return 0
		}
		for i := range next {
			next[i] /= norm
		}
		lambda = norm
		v = next
	}
	return lambda
}

func (s *qpSolver) matVec(w []float64) []float64 {
	n := len(w)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += s.sigma.At(i, j) * w[j]
		}
		out[i] = sum
	}
	return out
}

func (s *qpSolver) portfolioReturn(w []float64) float64 {
	var sum float64
	for i, x := range w {
		sum += s.mu[i] * x
	}
	return sum
}

func (s *qpSolver) portfolioVolatility(w []float64) float64 {
	sw := s.matVec(w)
	var variance float64
	for i, x := range w {
		variance += x * sw[i]
	}
	return math.Sqrt(math.Max(variance, 0))
}

// solveRiskAversion 求解 min wᵀΣw − γμᵀw s.t. Σw=1, lo<=w<=hi
func (s *qpSolver) solveRiskAversion(gamma float64) []float64 {
	n := len(s.mu)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	w = s.project(w)

	for iter := 0; iter < s.maxIter; iter++ {
		sw := s.matVec(w)
		next := make([]float64, n)
		for i := range w {
			grad := 2*sw[i] - gamma*s.mu[i]
			next[i] = w[i] - s.stepSize*grad
		}
		next = s.project(next)

		maxDiff := 0.0
		for i := range w {
			if d := math.Abs(next[i] - w[i]); d > maxDiff {
				maxDiff = d
			}
		}
		w = next
		if maxDiff < s.tol {
			break
		}
	}
	return w
}

// solveMaxSharpe 沿前沿对 γ 做黄金分割搜索，最大化 (μᵀw − rf)/√(wᵀΣw)
func (s *qpSolver) solveMaxSharpe(riskFreeRate float64) (float64, []float64) {
	sharpeAt := func(gamma float64) (float64, []float64) {
		w := s.solveRiskAversion(gamma)
		vol := s.portfolioVolatility(w)
		if vol == 0 {
			return math.Inf(-1), w
		}
		return (s.portfolioReturn(w) - riskFreeRate) / vol, w
	}

	// γ 上界：收益饱和（到达贪心最大收益顶点）即停
	maxRet := s.maxAttainableReturn()
	gammaHi := 1.0
	for i := 0; i < 40; i++ {
		w := s.solveRiskAversion(gammaHi)
		if s.portfolioReturn(w) >= maxRet-1e-10 {
			break
		}
		gammaHi *= 4
	}

	const phi = 0.6180339887498949
	lo, hi := 0.0, gammaHi
	a := hi - phi*(hi-lo)
	b := lo + phi*(hi-lo)
	fa, _ := sharpeAt(a)
	fb, _ := sharpeAt(b)
	for i := 0; i < 80; i++ {
		// 夏普相同时收缩右端，偏向较低波动率一侧
		if fa >= fb {
			hi = b
			b, fb = a, fa
			a = hi - phi*(hi-lo)
			fa, _ = sharpeAt(a)
		} else {
			lo = a
			a, fa = b, fb
			b = lo + phi*(hi-lo)
			fb, _ = sharpeAt(b)
		}
	}

	gamma := (lo + hi) / 2
	// γ=0（最小方差点）也可能就是最大夏普解
	sMid, wMid := sharpeAt(gamma)
	sZero, wZero := sharpeAt(0)
	if sZero >= sMid {
		return 0, wZero
	}
	return gamma, wMid
}

// solveTargetReturn 对 γ→μᵀw(γ) 的单调映射二分，命中目标收益后即为该收益下的最小方差组合
func (s *qpSolver) solveTargetReturn(target, gammaHi float64) []float64 {
	lo, hi := 0.0, gammaHi
	w := s.solveRiskAversion(hi)
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		w = s.solveRiskAversion(mid)
		if s.portfolioReturn(w) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return s.solveRiskAversion(hi)
}

// maxAttainableReturn 盒型单纯形上的最大收益顶点（按 μ 降序的贪心分配）
func (s *qpSolver) maxAttainableReturn() float64 {
	n := len(s.mu)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return s.mu[order[a]] > s.mu[order[b]] })

	remaining := 1 - float64(n)*s.lo
	ret := 0.0
	for _, idx := range order {
		w := s.lo
		if remaining > 0 {
			extra := math.Min(s.hi-s.lo, remaining)
			w += extra
			remaining -= extra
		}
		ret += s.mu[idx] * w
	}
	return ret
}

// project 欧氏投影到 {Σw=1, lo<=w<=hi}
// 对拉格朗日位移 λ 二分：g(λ)=Σ clamp(v−λ, lo, hi) 关于 λ 单调不增
func (s *qpSolver) project(v []float64) []float64 {
	n := len(v)
	minV, maxV := v[0], v[0]
	for _, x := range v {
		minV = math.Min(minV, x)
		maxV = math.Max(maxV, x)
	}

	lo := minV - s.hi - 1
	hi := maxV - s.lo + 1
	for i := 0; i < 120; i++ {
		mid := (lo + hi) / 2
		sum := 0.0
		for _, x := range v {
			sum += clamp(x-mid, s.lo, s.hi)
		}
		if sum > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}

	lambda := (lo + hi) / 2
	out := make([]float64, n)
	for i, x := range v {
		out[i] = clamp(x-lambda, s.lo, s.hi)
	}
	return out
}

func (s *qpSolver) makePoint(t FrontierPointType, assets []string, w []float64, riskFreeRate float64) FrontierPoint {
	weights := make(map[string]float64, len(assets))
	for i, asset := range assets {
		weights[asset] = w[i]
	}
	ret := s.portfolioReturn(w)
	vol := s.portfolioVolatility(w)
	sharpe := 0.0
	if vol > 0 {
		sharpe = (ret - riskFreeRate) / vol
	}
	return FrontierPoint{
		Type:           t,
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    sharpe,
		Weights:        weights,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
