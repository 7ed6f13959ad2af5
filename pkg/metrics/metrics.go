package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// maxHistogramValues bounds memory for a bot that runs for weeks
const maxHistogramValues = 1024

// Metrics tracks various application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	mu         sync.RWMutex
	startTime  time.Time
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string]*Histogram
}

// Histogram tracks the distribution of the most recent values
type Histogram struct {
	values []float64
}

// HistogramStats contains histogram statistics
type HistogramStats struct {
	Count int
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		startTime:  time.Now(),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]*Histogram),
	}
}

// IsEnabled reports whether m records anything
func (m *Metrics) IsEnabled() bool {
	return m != nil
}

// IncCounter increments a counter metric
func (m *Metrics) IncCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds a value to a counter metric
func (m *Metrics) AddCounter(name string, value int64) {
	if !m.IsEnabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

// SetGauge sets a gauge metric
func (m *Metrics) SetGauge(name string, value float64) {
	if !m.IsEnabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// AddToHistogram adds a value to a histogram
func (m *Metrics) AddToHistogram(name string, value float64) {
	if !m.IsEnabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, exists := m.histograms[name]
	if !exists {
		h = &Histogram{}
		m.histograms[name] = h
	}
	h.values = append(h.values, value)
	if len(h.values) > maxHistogramValues {
		h.values = h.values[len(h.values)-maxHistogramValues:]
	}
}

func (h *Histogram) stats() *HistogramStats {
	if len(h.values) == 0 {
		return &HistogramStats{}
	}

	var sum float64
	min := h.values[0]
	max := h.values[0]
	for _, value := range h.values {
		sum += value
		if value < min {
			min = value
		}
		if value > max {
			max = value
		}
	}

	return &HistogramStats{
		Count: len(h.values),
		Sum:   sum,
		Mean:  sum / float64(len(h.values)),
		Min:   min,
		Max:   max,
	}
}

// GetAllMetrics returns all metrics
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	all := make(map[string]interface{})
	if m == nil {
		return all
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, value := range m.counters {
		all[fmt.Sprintf("counter_%s", name)] = value
	}
	for name, value := range m.gauges {
		all[fmt.Sprintf("gauge_%s", name)] = value
	}
	for name, h := range m.histograms {
		stats := h.stats()
		all[fmt.Sprintf("histogram_%s_count", name)] = stats.Count
		all[fmt.Sprintf("histogram_%s_mean", name)] = stats.Mean
		all[fmt.Sprintf("histogram_%s_max", name)] = stats.Max
	}

	return all
}

// GetSystemMetrics returns runtime metrics
func (m *Metrics) GetSystemMetrics() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := 0.0
	if m != nil {
		uptime = time.Since(m.startTime).Seconds()
	}

	return map[string]interface{}{
		"uptime_seconds":          uptime,
		"memory_alloc_bytes":      memStats.Alloc,
		"memory_sys_bytes":        memStats.Sys,
		"memory_heap_inuse_bytes": memStats.HeapInuse,
		"gc_num":                  memStats.NumGC,
		"goroutines":              runtime.NumGoroutine(),
	}
}

// RecordCommandExecution records command execution metrics
func (m *Metrics) RecordCommandExecution(command string, success bool, duration time.Duration) {
	m.IncCounter(fmt.Sprintf("command_total_%s", command))
	if success {
		m.IncCounter(fmt.Sprintf("command_success_%s", command))
	} else {
		m.IncCounter(fmt.Sprintf("command_error_%s", command))
	}
	m.AddToHistogram(fmt.Sprintf("command_duration_%s", command), float64(duration.Milliseconds()))
}

// RecordTick records the outcome of one scheduler tick
func (m *Metrics) RecordTick(outcome string, duration time.Duration) {
	m.IncCounter("tick_total")
	m.IncCounter(fmt.Sprintf("tick_%s", outcome))
	m.AddToHistogram("tick_duration", float64(duration.Milliseconds()))
}

// RecordLoad records a playlist load
func (m *Metrics) RecordLoad(loaded, skipped int, duration time.Duration) {
	m.IncCounter("playlist_loads")
	m.AddCounter("playlist_tracks_skipped", int64(skipped))
	m.SetGauge("playlist_tracks_loaded", float64(loaded))
	m.AddToHistogram("playlist_load_duration", float64(duration.Milliseconds()))
}

// RecordQueueSize records the current queue length
func (m *Metrics) RecordQueueSize(size int) {
	m.SetGauge("queue_size", float64(size))
}

// RecordVoiceEvent records voice connection events
func (m *Metrics) RecordVoiceEvent(event string) {
	m.IncCounter(fmt.Sprintf("voice_event_%s", event))
}

// RecordDiscordEvent records gateway events
func (m *Metrics) RecordDiscordEvent(event string) {
	m.IncCounter(fmt.Sprintf("discord_event_%s", event))
}

// RecordError records error events by type
func (m *Metrics) RecordError(errorType string) {
	m.IncCounter(fmt.Sprintf("error_%s", errorType))
}

// MetricsSummary contains a summary of metrics
type MetricsSummary struct {
	Timestamp time.Time
	Uptime    time.Duration
	Metrics   map[string]interface{}
}

// GetMetricsSummary returns a summary of key metrics
func (m *Metrics) GetMetricsSummary() MetricsSummary {
	combined := m.GetAllMetrics()
	for k, v := range m.GetSystemMetrics() {
		combined[k] = v
	}

	var uptime time.Duration
	if m != nil {
		uptime = time.Since(m.startTime)
	}

	return MetricsSummary{
		Timestamp: time.Now(),
		Uptime:    uptime,
		Metrics:   combined,
	}
}

// MonitoringCollector samples runtime metrics on an interval
type MonitoringCollector struct {
	metrics  *Metrics
	interval time.Duration
}

// NewMonitoringCollector creates a new monitoring collector
func NewMonitoringCollector(metrics *Metrics, interval time.Duration) *MonitoringCollector {
	return &MonitoringCollector{
		metrics:  metrics,
		interval: interval,
	}
}

// Start samples until ctx is cancelled
func (c *MonitoringCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collectSystemMetrics()
		}
	}
}

func (c *MonitoringCollector) collectSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.metrics.SetGauge("system_memory_alloc_mb", float64(memStats.Alloc)/1024/1024)
	c.metrics.SetGauge("system_memory_sys_mb", float64(memStats.Sys)/1024/1024)
	c.metrics.SetGauge("system_goroutines", float64(runtime.NumGoroutine()))
	c.metrics.SetGauge("system_gc_count", float64(memStats.NumGC))
}
