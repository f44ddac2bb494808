// Package metrics 提供 Prometheus helper，覆盖计算请求、缓存命中与模拟规模
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"

	"github.com/wyfcoding/portfoliorisk/pkg/logger"
)

// Metrics 分析服务指标集合
type Metrics struct {
	// 各计算操作的请求计数（按操作与结果分类）
	ComputeRequestsTotal *prometheus.CounterVec
	// 各计算操作的耗时
	ComputeDuration *prometheus.HistogramVec
	// 缓存命中计数
	CacheHitsTotal prometheus.Counter
	// 缓存未命中计数
	CacheMissesTotal prometheus.Counter
	// 缓存故障计数（降级为直接计算）
	CacheFaultsTotal prometheus.Counter
	// 蒙特卡洛模拟路径数分布
	SimulationPaths prometheus.Histogram
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		ComputeRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: serviceName,
			Name:      "compute_requests_total",
			Help:      "Total compute requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		ComputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "analytics",
			Subsystem: serviceName,
			Name:      "compute_duration_seconds",
			Help:      "Compute duration in seconds by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: serviceName,
			Name:      "cache_hits_total",
			Help:      "Total result cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: serviceName,
			Name:      "cache_misses_total",
			Help:      "Total result cache misses",
		}),
		CacheFaultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: serviceName,
			Name:      "cache_faults_total",
			Help:      "Total result cache faults (bypassed)",
		}),
		SimulationPaths: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "analytics",
			Subsystem: serviceName,
			Name:      "simulation_paths",
			Help:      "Monte Carlo path counts per request",
			Buckets:   []float64{100, 500, 1000, 5000, 10000},
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.ComputeRequestsTotal,
		m.ComputeDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheFaultsTotal,
		m.SimulationPaths,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	return nil
}

// Handler 返回 Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
