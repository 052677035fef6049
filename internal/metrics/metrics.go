package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager 提取流程的 Prometheus 指标
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	filesTotal      *prometheus.CounterVec
	extractDuration prometheus.Histogram
	runsTotal       *prometheus.CounterVec
	recordsMerged   prometheus.Gauge
	lastRunSeconds  prometheus.Gauge
}

// extractBuckets 单文件耗时直方图分桶（秒）
var extractBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Option 配置 Manager
type Option func(*Manager)

// WithNamespace 设置指标命名空间
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		m.namespace = ns
	}
}

// NewManager 创建指标管理器
func NewManager(opts ...Option) *Manager {
	m := &Manager{namespace: "rekap"}
	for _, opt := range opts {
		opt(m)
	}
	// 独立注册表，不包含 Go 运行时指标
	m.registry = prometheus.NewRegistry()

	auto := promauto.With(m.registry)

	m.filesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "files_total",
		Help:      "Spreadsheets handled by the extraction pool, by outcome",
	}, []string{"status"})

	m.extractDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "extract_duration_seconds",
		Help:      "Time spent extracting a single spreadsheet",
		Buckets:   extractBuckets,
	})

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"outcome"})

	m.recordsMerged = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "records_merged",
		Help:      "Rows in the merged dataset of the last run",
	})

	m.lastRunSeconds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "last_run_duration_seconds",
		Help:      "Wall time of the last pipeline run",
	})

	return m
}

// RecordFile 记录单个文件的处理结果与耗时
func (m *Manager) RecordFile(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(status).Inc()
	m.extractDuration.Observe(d.Seconds())
}

// RecordRun 记录一次运行的结果
func (m *Manager) RecordRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.lastRunSeconds.Set(d.Seconds())
}

// SetRecordsMerged 记录合并后数据集的行数
func (m *Manager) SetRecordsMerged(n int) {
	if m == nil {
		return
	}
	m.recordsMerged.Set(float64(n))
}

// Registry 返回底层注册表
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
