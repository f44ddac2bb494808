package application

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
)

// memoryCache 进程内缓存实现，带 TTL，仅用于测试
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]memoryEntry{}}
}

func (c *memoryCache) Get(ctx context.Context, fingerprint string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[fingerprint]
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, fingerprint)
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *memoryCache) Set(ctx context.Context, fingerprint string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
	return nil
}

func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// brokenCache 所有操作都失败的缓存，用于验证降级路径
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, fingerprint string, dest any) (bool, error) {
	return false, errors.New("cache backend unreachable")
}

func (brokenCache) Set(ctx context.Context, fingerprint string, value any, ttl time.Duration) error {
	return errors.New("cache backend unreachable")
}

func (brokenCache) Delete(ctx context.Context, fingerprint string) error {
	return errors.New("cache backend unreachable")
}

func (brokenCache) DeletePrefix(ctx context.Context, prefix string) error {
	return errors.New("cache backend unreachable")
}

func newTestService(cache domain.ResultCache, opts Options) *AnalyticsService {
	return NewAnalyticsService(cache, nil, nil, nil, opts)
}

var testReturns = []float64{0.01, -0.02, 0.03, -0.01, 0.02, 0.005, -0.005}

func TestCachedComputeSkipsRecomputation(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute})
	ctx := context.Background()

	calls := 0
	compute := func() (float64, error) {
		calls++
		return 0.42, nil
	}
	params := struct {
		Returns []float64 `json:"returns"`
	}{testReturns}

	first, err := computeCached(ctx, s, "", "var", params, compute)
	require.NoError(t, err)
	second, err := computeCached(ctx, s, "", "var", params, compute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "cache hit must not recompute")
}

func TestCachedComputeRecomputesAfterTTL(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: 20 * time.Millisecond})
	ctx := context.Background()

	calls := 0
	compute := func() (float64, error) {
		calls++
		return 0.42, nil
	}
	params := struct {
		Returns []float64 `json:"returns"`
	}{testReturns}

	_, err := computeCached(ctx, s, "", "var", params, compute)
	require.NoError(t, err)
	_, err = computeCached(ctx, s, "", "var", params, compute)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	time.Sleep(30 * time.Millisecond)

	_, err = computeCached(ctx, s, "", "var", params, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired entry must trigger recomputation")
}

func TestCachedComputeDistinctInputs(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute})
	ctx := context.Background()

	calls := 0
	compute := func() (float64, error) {
		calls++
		return float64(calls), nil
	}

	_, err := computeCached(ctx, s, "", "var", []float64{0.01, 0.02}, compute)
	require.NoError(t, err)
	_, err = computeCached(ctx, s, "", "var", []float64{0.02, 0.01}, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "different inputs must not share a cache entry")
}

func TestComputeVaREndToEnd(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute})
	ctx := context.Background()

	req := &VaRRequest{Returns: testReturns}
	first, err := s.ComputeVaR(ctx, req)
	require.NoError(t, err)
	assert.InDelta(t, -0.02225, first.Value, 1e-4)

	second, err := s.ComputeVaR(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value, "cached result must be bit-identical")
}

func TestComputeVaRDefaultsAndRejections(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute})
	ctx := context.Background()

	// 缺省置信水平取 0.95
	implicit, err := s.ComputeVaR(ctx, &VaRRequest{Returns: testReturns})
	require.NoError(t, err)
	explicit95 := 0.95
	explicit, err := s.ComputeVaR(ctx, &VaRRequest{Returns: testReturns, Confidence: &explicit95})
	require.NoError(t, err)
	assert.Equal(t, explicit.Value, implicit.Value)

	// 显式给出的非法置信水平被拒绝，而不是回落到默认值
	var validationErr *domain.ValidationError
	zero := 0.0
	_, err = s.ComputeVaR(ctx, &VaRRequest{Returns: testReturns, Confidence: &zero})
	require.ErrorAs(t, err, &validationErr)

	one := 1.0
	_, err = s.ComputeVaR(ctx, &VaRRequest{Returns: testReturns, Confidence: &one})
	require.ErrorAs(t, err, &validationErr)

	_, err = s.ComputeVaR(ctx, &VaRRequest{Returns: []float64{0.01}})
	require.ErrorAs(t, err, &validationErr)
}

func TestCacheFaultFallsBackToCompute(t *testing.T) {
	s := newTestService(brokenCache{}, Options{CacheTTL: time.Minute})
	ctx := context.Background()

	result, err := s.ComputeVaR(ctx, &VaRRequest{Returns: testReturns})
	require.NoError(t, err, "cache faults must never block computation")
	assert.InDelta(t, -0.02225, result.Value, 1e-4)

	metrics, err := s.ComputePortfolioMetrics(ctx, &MetricsRequest{Returns: testReturns})
	require.NoError(t, err)
	assert.LessOrEqual(t, metrics.ConditionalVaR, metrics.ValueAtRisk)
}

func TestInvalidatePortfolioDropsScopedEntries(t *testing.T) {
	cache := newMemoryCache()
	s := newTestService(cache, Options{CacheTTL: time.Minute})
	ctx := context.Background()

	calls := 0
	compute := func() (float64, error) {
		calls++
		return 0.42, nil
	}
	params := struct {
		Returns []float64 `json:"returns"`
	}{testReturns}

	_, err := computeCached(ctx, s, "p1", "var", params, compute)
	require.NoError(t, err)
	_, err = computeCached(ctx, s, "p2", "var", params, compute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, 2, cache.size())

	require.NoError(t, s.InvalidatePortfolio(ctx, "p1", "holdings updated"))
	require.Equal(t, 1, cache.size())

	// p1 失效后重算，p2 不受影响
	_, err = computeCached(ctx, s, "p1", "var", params, compute)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	_, err = computeCached(ctx, s, "p2", "var", params, compute)
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "other portfolios keep their cached entries")
}

func TestRunMonteCarloSeededCachedUnseededNot(t *testing.T) {
	cache := newMemoryCache()
	s := newTestService(cache, Options{CacheTTL: time.Minute, MaxSimulations: 10000})
	ctx := context.Background()

	mean, std := 0.0005, 0.01
	seed := uint64(42)
	sims := 200
	horizon := 20

	seeded := &MonteCarloRequest{
		MeanReturn:     &mean,
		StdDev:         &std,
		NumSimulations: &sims,
		Horizon:        &horizon,
		InitialValue:   100000,
		Seed:           &seed,
	}
	first, err := s.RunMonteCarlo(ctx, seeded)
	require.NoError(t, err)
	require.Equal(t, 1, cache.size(), "seeded runs are cached")

	second, err := s.RunMonteCarlo(ctx, seeded)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	unseeded := &MonteCarloRequest{
		MeanReturn:     &mean,
		StdDev:         &std,
		NumSimulations: &sims,
		Horizon:        &horizon,
		InitialValue:   100000,
	}
	_, err = s.RunMonteCarlo(ctx, unseeded)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.size(), "unseeded runs bypass the cache")
}

func TestRunMonteCarloPathLimit(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute, MaxSimulations: 100})
	ctx := context.Background()

	mean, std := 0.0, 0.01
	sims := 101
	_, err := s.RunMonteCarlo(ctx, &MonteCarloRequest{
		MeanReturn:     &mean,
		StdDev:         &std,
		NumSimulations: &sims,
		InitialValue:   1000,
	})
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestRunMonteCarloBlendedStats(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute, MaxSimulations: 10000})
	ctx := context.Background()

	seed := uint64(7)
	sims := 100
	horizon := 10
	result, err := s.RunMonteCarlo(ctx, &MonteCarloRequest{
		Weights: map[string]float64{"AAA": 0.5, "BBB": 0.5},
		ReturnsByAsset: map[string][]float64{
			"AAA": {0.01, 0.02, 0.03, 0.00},
			"BBB": {0.02, 0.01, 0.00, 0.03},
		},
		NumSimulations: &sims,
		Horizon:        &horizon,
		InitialValue:   1000,
		Seed:           &seed,
	})
	require.NoError(t, err)
	assert.Positive(t, result.ExpectedFinalValue)

	// 既没有直接统计量也没有序列时拒绝
	var validationErr *domain.ValidationError
	_, err = s.RunMonteCarlo(ctx, &MonteCarloRequest{InitialValue: 1000})
	require.ErrorAs(t, err, &validationErr)
}

type fixedForecaster struct {
	vol float64
}

func (f fixedForecaster) ForecastVolatility(ctx context.Context, returns domain.ReturnSeries, horizon int) (float64, error) {
	return f.vol, nil
}

func TestRunMonteCarloWithVolatilityForecaster(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute, MaxSimulations: 10000})
	s.SetVolatilityForecaster(fixedForecaster{vol: 0})
	ctx := context.Background()

	seed := uint64(3)
	sims := 50
	horizon := 5
	result, err := s.RunMonteCarlo(ctx, &MonteCarloRequest{
		Weights: map[string]float64{"AAA": 0.5, "BBB": 0.5},
		ReturnsByAsset: map[string][]float64{
			"AAA": {0.01, 0.02, 0.03, 0.00},
			"BBB": {0.02, 0.01, 0.00, 0.03},
		},
		NumSimulations: &sims,
		Horizon:        &horizon,
		InitialValue:   1000,
		Seed:           &seed,
	})
	require.NoError(t, err)

	// 预测波动率为 0 时路径退化为确定性复利（合成均值 0.015）
	want := 1000 * math.Pow(1.015, 5)
	assert.InDelta(t, want, result.ExpectedFinalValue, 1e-9)
}

func TestComputeEfficientFrontierThroughService(t *testing.T) {
	s := newTestService(newMemoryCache(), Options{CacheTTL: time.Minute})
	ctx := context.Background()

	req := &FrontierRequest{
		ReturnsByAsset: map[string][]float64{
			"AAA": {0.010, 0.012, 0.008, 0.011, 0.009, 0.010, 0.012, 0.008},
			"BBB": {0.020, -0.010, 0.030, 0.000, 0.025, -0.005, 0.030, 0.010},
			"CCC": {0.001, 0.002, 0.000, 0.001, 0.0015, 0.001, 0.002, 0.0005},
		},
	}
	points, err := s.ComputeEfficientFrontier(ctx, req)
	require.NoError(t, err)
	assert.Len(t, points, DefaultFrontierPoints)

	again, err := s.ComputeEfficientFrontier(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, points, again)
}
