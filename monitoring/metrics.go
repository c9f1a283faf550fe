// Package monitoring 提供预测服务运行指标
package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Channel 预测入口
type Channel string

const (
	ChannelSingle Channel = "single"
	ChannelBatch  Channel = "batch"
	ChannelSocket Channel = "socket"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	mu sync.RWMutex

	requests map[Channel]int64
	rows     map[Channel]int64
	labels   map[string]int64
	failures map[string]int64

	latencyCount int64
	latencyTotal time.Duration
	latencyMax   time.Duration

	startTime time.Time
}

// Snapshot 指标快照
type Snapshot struct {
	Uptime    string            `json:"uptime"`
	Requests  map[Channel]int64 `json:"requests"`
	Rows      map[Channel]int64 `json:"rows"`
	Labels    map[string]int64  `json:"labels"`
	Failures  map[string]int64  `json:"failures"`
	Latency   LatencyStats      `json:"latency"`
	System    SystemStats       `json:"system"`
	Timestamp time.Time         `json:"timestamp"`
}

// LatencyStats 预测耗时统计
type LatencyStats struct {
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// SystemStats 系统统计
type SystemStats struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapInuse  uint64 `json:"heap_inuse"`
	Sys        uint64 `json:"sys"`
	GCCount    uint32 `json:"gc_count"`
	NumCPU     int    `json:"num_cpu"`
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requests:  make(map[Channel]int64),
		rows:      make(map[Channel]int64),
		labels:    make(map[string]int64),
		failures:  make(map[string]int64),
		startTime: time.Now(),
	}
}

// RecordPrediction 记录一次成功预测
func (mc *MetricsCollector) RecordPrediction(channel Channel, labels []string, elapsed time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests[channel]++
	mc.rows[channel] += int64(len(labels))
	for _, label := range labels {
		mc.labels[label]++
	}

	mc.latencyCount++
	mc.latencyTotal += elapsed
	if elapsed > mc.latencyMax {
		mc.latencyMax = elapsed
	}
}

// RecordFailure 记录一次失败，kind 为错误分类
func (mc *MetricsCollector) RecordFailure(channel Channel, kind string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests[channel]++
	mc.failures[kind]++
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// Snapshot 获取当前指标
func (mc *MetricsCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	latency := LatencyStats{Count: mc.latencyCount, MaxMs: milliseconds(mc.latencyMax)}
	if mc.latencyCount > 0 {
		latency.MeanMs = milliseconds(mc.latencyTotal) / float64(mc.latencyCount)
	}

	return Snapshot{
		Uptime:    mc.GetUptime().Round(time.Second).String(),
		Requests:  copyMap(mc.requests),
		Rows:      copyMap(mc.rows),
		Labels:    copyMap(mc.labels),
		Failures:  copyMap(mc.failures),
		Latency:   latency,
		System:    GetSystemStats(),
		Timestamp: time.Now(),
	}
}

// GetSystemStats 获取系统统计
func GetSystemStats() SystemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemStats{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
		Sys:        m.Sys,
		GCCount:    m.NumGC,
		NumCPU:     runtime.NumCPU(),
	}
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	s := mc.Snapshot()
	var b strings.Builder

	writeFamily(&b, "companystatus_requests_total", "counter", "Prediction requests by channel.", "channel", toFloat(s.Requests))
	writeFamily(&b, "companystatus_rows_total", "counter", "Predicted rows by channel.", "channel", toFloat(s.Rows))
	writeFamily(&b, "companystatus_predictions_total", "counter", "Predicted rows by label.", "label", toFloat(s.Labels))
	writeFamily(&b, "companystatus_failures_total", "counter", "Failed predictions by error kind.", "kind", toFloat(s.Failures))

	fmt.Fprintf(&b, "# HELP companystatus_prediction_latency_max_ms Slowest prediction.\n")
	fmt.Fprintf(&b, "# TYPE companystatus_prediction_latency_max_ms gauge\n")
	fmt.Fprintf(&b, "companystatus_prediction_latency_max_ms %g\n", s.Latency.MaxMs)
	fmt.Fprintf(&b, "# HELP companystatus_goroutines Live goroutines.\n")
	fmt.Fprintf(&b, "# TYPE companystatus_goroutines gauge\n")
	fmt.Fprintf(&b, "companystatus_goroutines %d\n", s.System.Goroutines)

	return b.String()
}

func writeFamily(b *strings.Builder, name, kind, help, label string, values map[string]float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=%q} %g\n", name, label, k, values[k])
	}
}

func toFloat[K ~string](m map[K]int64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = float64(v)
	}
	return out
}

func copyMap[K comparable](m map[K]int64) map[K]int64 {
	out := make(map[K]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
