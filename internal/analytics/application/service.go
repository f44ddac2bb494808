package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
	"github.com/wyfcoding/portfoliorisk/pkg/logger"
	"github.com/wyfcoding/portfoliorisk/pkg/metrics"
)

const cacheKeyPrefix = "analytics:"

// Options 应用服务可选配置
type Options struct {
	CacheTTL          time.Duration // 结果缓存有效期
	MaxSimulations    int           // 单次请求允许的最大模拟路径数
	SimulationTimeout time.Duration // 蒙特卡洛执行超时，0 表示不限制
}

// AnalyticsService 组合风险分析应用服务
// 编排流程：校验 -> 指纹 -> 缓存查找 -> 未命中时计算 -> 写回缓存
// 缓存故障一律记录日志后降级为直接计算，不向调用方传播
type AnalyticsService struct {
	cache      domain.ResultCache
	snapshots  domain.SnapshotRepository
	publisher  domain.EventPublisher
	metrics    *metrics.Metrics
	optimizer  *domain.Optimizer
	simulator  *domain.Simulator
	forecaster domain.VolatilityForecaster
	opts       Options
}

// NewAnalyticsService 创建分析应用服务
// snapshots 与 publisher 可为 nil，此时跳过快照留存与事件发布
func NewAnalyticsService(
	cache domain.ResultCache,
	snapshots domain.SnapshotRepository,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	opts Options,
) *AnalyticsService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.MaxSimulations <= 0 {
		opts.MaxSimulations = 10000
	}
	return &AnalyticsService{
		cache:     cache,
		snapshots: snapshots,
		publisher: publisher,
		metrics:   m,
		optimizer: domain.NewOptimizer(),
		simulator: domain.NewSimulator(),
		opts:      opts,
	}
}

// SetVolatilityForecaster 注入可选的外部波动率预测器
// 设置后，按资产序列合成统计量的蒙特卡洛请求用预测值替代样本标准差
func (s *AnalyticsService) SetVolatilityForecaster(f domain.VolatilityForecaster) {
	s.forecaster = f
}

// ComputeVaR 计算参数法 VaR
func (s *AnalyticsService) ComputeVaR(ctx context.Context, req *VaRRequest) (*ScalarResult, error) {
	rs, err := domain.NewReturnSeries("returns", req.Returns)
	if err != nil {
		return nil, err
	}
	confidence := req.confidence()

	params := struct {
		Returns    []float64 `json:"returns"`
		Confidence float64   `json:"confidence"`
	}{rs, confidence}

	value, err := computeCached(ctx, s, req.PortfolioID, "var", params, func() (float64, error) {
		return domain.ValueAtRisk(rs, confidence)
	})
	if err != nil {
		return nil, err
	}
	return &ScalarResult{Value: value}, nil
}

// ComputeCVaR 计算条件 VaR
func (s *AnalyticsService) ComputeCVaR(ctx context.Context, req *VaRRequest) (*ScalarResult, error) {
	rs, err := domain.NewReturnSeries("returns", req.Returns)
	if err != nil {
		return nil, err
	}
	confidence := req.confidence()

	params := struct {
		Returns    []float64 `json:"returns"`
		Confidence float64   `json:"confidence"`
	}{rs, confidence}

	value, err := computeCached(ctx, s, req.PortfolioID, "cvar", params, func() (float64, error) {
		return domain.ConditionalVaR(rs, confidence)
	})
	if err != nil {
		return nil, err
	}
	return &ScalarResult{Value: value}, nil
}

// ComputeSharpe 计算夏普比率
func (s *AnalyticsService) ComputeSharpe(ctx context.Context, req *SharpeRequest) (*ScalarResult, error) {
	rs, err := domain.NewReturnSeries("returns", req.Returns)
	if err != nil {
		return nil, err
	}

	params := struct {
		Returns      []float64 `json:"returns"`
		RiskFreeRate float64   `json:"risk_free_rate"`
	}{rs, req.RiskFreeRate}

	value, err := computeCached(ctx, s, req.PortfolioID, "sharpe", params, func() (float64, error) {
		return domain.SharpeRatio(rs, req.RiskFreeRate)
	})
	if err != nil {
		return nil, err
	}
	return &ScalarResult{Value: value}, nil
}

// ComputeMaxDrawdown 计算最大回撤
func (s *AnalyticsService) ComputeMaxDrawdown(ctx context.Context, req *DrawdownRequest) (*ScalarResult, error) {
	rs, err := domain.NewReturnSeries("returns", req.Returns)
	if err != nil {
		return nil, err
	}

	params := struct {
		Returns []float64 `json:"returns"`
	}{rs}

	value, err := computeCached(ctx, s, req.PortfolioID, "drawdown", params, func() (float64, error) {
		return domain.MaxDrawdown(rs)
	})
	if err != nil {
		return nil, err
	}
	return &ScalarResult{Value: value}, nil
}

// ComputePortfolioMetrics 计算风险指标汇总
// 携带组合 ID 时把结果作为快照留存（尽力而为）
func (s *AnalyticsService) ComputePortfolioMetrics(ctx context.Context, req *MetricsRequest) (*domain.RiskAssessment, error) {
	rs, err := domain.NewReturnSeries("returns", req.Returns)
	if err != nil {
		return nil, err
	}
	confidence := req.confidence()

	params := struct {
		Returns      []float64 `json:"returns"`
		Confidence   float64   `json:"confidence"`
		RiskFreeRate float64   `json:"risk_free_rate"`
	}{rs, confidence, req.RiskFreeRate}

	result, err := computeCached(ctx, s, req.PortfolioID, "metrics", params, func() (*domain.RiskAssessment, error) {
		return domain.PortfolioMetrics(rs, confidence, req.RiskFreeRate)
	})
	if err != nil {
		return nil, err
	}

	if req.PortfolioID != "" && s.snapshots != nil {
		snapshot := &domain.RiskSnapshot{
			ID:             uuid.NewString(),
			PortfolioID:    req.PortfolioID,
			Confidence:     confidence,
			RiskFreeRate:   req.RiskFreeRate,
			ExpectedReturn: result.ExpectedReturn,
			Volatility:     result.Volatility,
			ValueAtRisk:    result.ValueAtRisk,
			ConditionalVaR: result.ConditionalVaR,
			SharpeRatio:    result.SharpeRatio,
			MaxDrawdown:    result.MaxDrawdown,
			ComputedAt:     time.Now(),
		}
		if err := s.snapshots.SaveRiskSnapshot(ctx, snapshot); err != nil {
			logger.Warn(ctx, "Failed to save risk snapshot", "portfolio_id", req.PortfolioID, "error", err)
		}
	}
	return result, nil
}

// ComputeEfficientFrontier 计算有效前沿
func (s *AnalyticsService) ComputeEfficientFrontier(ctx context.Context, req *FrontierRequest) ([]domain.FrontierPoint, error) {
	returns := make(map[string]domain.ReturnSeries, len(req.ReturnsByAsset))
	for asset, values := range req.ReturnsByAsset {
		rs, err := domain.NewReturnSeries(fmt.Sprintf("returns_by_asset[%s]", asset), values)
		if err != nil {
			return nil, err
		}
		returns[asset] = rs
	}

	input := domain.FrontierInput{
		Returns:      returns,
		MinWeight:    req.MinWeight,
		MaxWeight:    req.maxWeight(),
		RiskFreeRate: req.RiskFreeRate,
		Points:       req.points(),
	}

	params := struct {
		Returns      map[string]domain.ReturnSeries `json:"returns_by_asset"`
		MinWeight    float64                        `json:"min_weight"`
		MaxWeight    float64                        `json:"max_weight"`
		RiskFreeRate float64                        `json:"risk_free_rate"`
		Points       int                            `json:"points"`
	}{returns, input.MinWeight, input.MaxWeight, input.RiskFreeRate, input.Points}

	points, err := computeCached(ctx, s, req.PortfolioID, "frontier", params, func() ([]domain.FrontierPoint, error) {
		return s.optimizer.EfficientFrontier(input)
	})
	if err != nil {
		return nil, err
	}

	if req.PortfolioID != "" && s.snapshots != nil {
		raw, marshalErr := json.Marshal(points)
		if marshalErr != nil {
			logger.Warn(ctx, "Failed to encode frontier snapshot", "portfolio_id", req.PortfolioID, "error", marshalErr)
			return points, nil
		}
		snapshot := &domain.FrontierSnapshot{
			ID:          uuid.NewString(),
			PortfolioID: req.PortfolioID,
			Points:      string(raw),
			MinWeight:   input.MinWeight,
			MaxWeight:   input.MaxWeight,
			ComputedAt:  time.Now(),
		}
		if err := s.snapshots.SaveFrontierSnapshot(ctx, snapshot); err != nil {
			logger.Warn(ctx, "Failed to save frontier snapshot", "portfolio_id", req.PortfolioID, "error", err)
		}
	}
	return points, nil
}

// ComputeDiscreteAllocation 计算离散股数分配
func (s *AnalyticsService) ComputeDiscreteAllocation(ctx context.Context, req *AllocationRequest) (*domain.AllocationResult, error) {
	prices := make(map[string]decimal.Decimal, len(req.LatestPrices))
	for asset, price := range req.LatestPrices {
		prices[asset] = decimal.NewFromFloat(price)
	}
	input := domain.AllocationInput{
		Weights: req.Weights,
		Prices:  prices,
		Budget:  decimal.NewFromFloat(req.Budget),
	}

	params := struct {
		Weights map[string]float64 `json:"weights"`
		Prices  map[string]float64 `json:"latest_prices"`
		Budget  float64            `json:"budget"`
	}{req.Weights, req.LatestPrices, req.Budget}

	return computeCached(ctx, s, req.PortfolioID, "allocation", params, func() (*domain.AllocationResult, error) {
		return domain.ComputeDiscreteAllocation(input)
	})
}

// RunMonteCarlo 执行蒙特卡洛模拟
// 固定种子的请求参与缓存；未固定种子的请求每次都重新模拟
func (s *AnalyticsService) RunMonteCarlo(ctx context.Context, req *MonteCarloRequest) (*domain.SimulationResult, error) {
	numSims := req.numSimulations()
	if numSims > s.opts.MaxSimulations {
		return nil, domain.NewValidationError("num_simulations", numSims,
			fmt.Sprintf("simulation paths must not exceed %d", s.opts.MaxSimulations))
	}

	input := domain.SimulationInput{
		NumSimulations: numSims,
		Horizon:        req.horizon(),
		InitialValue:   req.InitialValue,
	}
	if req.Seed != nil {
		input.Seed = *req.Seed
		input.Seeded = true
	}

	switch {
	case req.MeanReturn != nil && req.StdDev != nil:
		input.MeanReturn = *req.MeanReturn
		input.StdDev = *req.StdDev
	case len(req.ReturnsByAsset) > 0:
		returns := make(map[string]domain.ReturnSeries, len(req.ReturnsByAsset))
		for asset, values := range req.ReturnsByAsset {
			rs, err := domain.NewReturnSeries(fmt.Sprintf("returns_by_asset[%s]", asset), values)
			if err != nil {
				return nil, err
			}
			returns[asset] = rs
		}
		mean, std, err := domain.BlendPortfolioStats(req.Weights, returns)
		if err != nil {
			return nil, err
		}
		input.MeanReturn = mean
		input.StdDev = std

		// 配置了外部波动率预测器时用其估计替代样本标准差，失败则回退
		if s.forecaster != nil {
			blended, err := domain.PortfolioReturnSeries(req.Weights, returns)
			if err == nil {
				if forecast, ferr := s.forecaster.ForecastVolatility(ctx, blended, input.Horizon); ferr == nil {
					input.StdDev = forecast
				} else {
					logger.Warn(ctx, "Volatility forecast failed, using sample estimate", "error", ferr)
				}
			}
		}
	default:
		return nil, domain.NewValidationError("stats", nil,
			"either mean_return/std_dev or weights with returns_by_asset must be provided")
	}

	if s.metrics != nil {
		s.metrics.SimulationPaths.Observe(float64(numSims))
	}
	if s.opts.SimulationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SimulationTimeout)
		defer cancel()
	}

	run := func() (*domain.SimulationResult, error) {
		return s.simulator.Run(ctx, input)
	}
	if !input.Seeded {
		return observeCompute(ctx, s, "montecarlo", run)
	}

	params := struct {
		Input domain.SimulationInput `json:"input"`
	}{input}
	return computeCached(ctx, s, req.PortfolioID, "montecarlo", params, run)
}

// ListSnapshots 查询组合的历史快照
func (s *AnalyticsService) ListSnapshots(ctx context.Context, portfolioID string, limit int) (*SnapshotsResult, error) {
	if portfolioID == "" {
		return nil, domain.NewValidationError("portfolio_id", portfolioID, "portfolio id is required")
	}
	if s.snapshots == nil {
		return &SnapshotsResult{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	risk, err := s.snapshots.ListRiskByPortfolio(ctx, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("list risk snapshots: %w", err)
	}
	frontier, err := s.snapshots.ListFrontierByPortfolio(ctx, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("list frontier snapshots: %w", err)
	}
	return &SnapshotsResult{Risk: risk, Frontier: frontier}, nil
}

// DeleteSnapshots 删除组合快照并使其缓存前缀失效
func (s *AnalyticsService) DeleteSnapshots(ctx context.Context, portfolioID string) error {
	if portfolioID == "" {
		return domain.NewValidationError("portfolio_id", portfolioID, "portfolio id is required")
	}
	if s.snapshots != nil {
		if err := s.snapshots.DeleteByPortfolio(ctx, portfolioID); err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
	}
	return s.InvalidatePortfolio(ctx, portfolioID, "snapshots deleted")
}

// InvalidatePortfolio 使组合的全部缓存结果失效
// 上游在组合持仓发生保存、更新或删除时调用，保证读己之写一致性
func (s *AnalyticsService) InvalidatePortfolio(ctx context.Context, portfolioID, reason string) error {
	if portfolioID == "" {
		return domain.NewValidationError("portfolio_id", portfolioID, "portfolio id is required")
	}

	if err := s.cache.DeletePrefix(ctx, portfolioPrefix(portfolioID)); err != nil {
		s.recordCacheFault(ctx, "delete_prefix", err)
	}
	if s.publisher != nil {
		event := domain.PortfolioInvalidatedEvent{
			PortfolioID: portfolioID,
			Reason:      reason,
			OccurredOn:  time.Now(),
		}
		if err := s.publisher.PublishPortfolioInvalidated(event); err != nil {
			logger.Warn(ctx, "Failed to publish invalidation event", "portfolio_id", portfolioID, "error", err)
		}
	}
	logger.Info(ctx, "Portfolio cache invalidated", "portfolio_id", portfolioID, "reason", reason)
	return nil
}

// computeCached 缓存包装：命中直接返回，未命中计算后写回
// 缓存读写失败计入故障指标并记录日志，绝不中断计算
func computeCached[T any](ctx context.Context, s *AnalyticsService, portfolioID, op string, params any, compute func() (T, error)) (T, error) {
	var zero T

	fp, err := domain.Fingerprint(op, params)
	if err != nil {
		logger.Warn(ctx, "Fingerprint failed, bypassing cache", "operation", op, "error", err)
		return observeCompute(ctx, s, op, compute)
	}
	key := portfolioPrefix(portfolioID) + fp

	var cached T
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.recordCacheFault(ctx, "get", err)
	} else if hit {
		if s.metrics != nil {
			s.metrics.CacheHitsTotal.Inc()
		}
		s.publishComputed(ctx, portfolioID, op, fp, true, 0)
		return cached, nil
	} else if s.metrics != nil {
		s.metrics.CacheMissesTotal.Inc()
	}

	start := time.Now()
	result, err := observeCompute(ctx, s, op, compute)
	if err != nil {
		return zero, err
	}

	if err := s.cache.Set(ctx, key, result, s.opts.CacheTTL); err != nil {
		s.recordCacheFault(ctx, "set", err)
	}
	s.publishComputed(ctx, portfolioID, op, fp, false, time.Since(start).Milliseconds())
	return result, nil
}

// observeCompute 执行计算并记录请求计数与耗时
func observeCompute[T any](ctx context.Context, s *AnalyticsService, op string, compute func() (T, error)) (T, error) {
	start := time.Now()
	result, err := compute()
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.ComputeRequestsTotal.WithLabelValues(op, outcome).Inc()
		s.metrics.ComputeDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if err != nil {
		logger.Warn(ctx, "Compute failed", "operation", op, "error", err)
		return result, err
	}
	logger.Debug(ctx, "Compute finished", "operation", op, "duration", elapsed)
	return result, nil
}

func (s *AnalyticsService) recordCacheFault(ctx context.Context, op string, err error) {
	if s.metrics != nil {
		s.metrics.CacheFaultsTotal.Inc()
	}
	cacheErr := domain.NewCacheError(op, err)
	logger.Warn(ctx, "Cache fault, falling back to compute", "error", cacheErr)
}

func (s *AnalyticsService) publishComputed(ctx context.Context, portfolioID, op, fp string, hit bool, durationMs int64) {
	if s.publisher == nil || portfolioID == "" {
		return
	}
	event := domain.AnalyticsComputedEvent{
		PortfolioID: portfolioID,
		Operation:   op,
		Fingerprint: fp,
		CacheHit:    hit,
		DurationMs:  durationMs,
		OccurredOn:  time.Now(),
	}
	if err := s.publisher.PublishAnalyticsComputed(event); err != nil {
		logger.Warn(ctx, "Failed to publish computed event", "operation", op, "error", err)
	}
}

// portfolioPrefix 组合级缓存键前缀，失效按该前缀批量删除
func portfolioPrefix(portfolioID string) string {
	if portfolioID == "" {
		return cacheKeyPrefix
	}
	return cacheKeyPrefix + "p:" + portfolioID + ":"
}
