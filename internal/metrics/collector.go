package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics holds one system metrics snapshot
type SystemMetrics struct {
	CPUPercent        float64 // system-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // this process, per core, can exceed 100% on multi-core
	MemoryUsedGB      float64
	MemoryTotalGB     float64
	MemoryPercent     float64
	ProcessRSSGB      float64
	Timestamp         time.Time
}

// Collector periodically collects and logs system metrics. Useful during
// index builds over large extracts, where memory pressure is the thing to
// watch.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	mu          sync.RWMutex
	lastMetrics *SystemMetrics
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start begins periodic collection. Returns when the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// GetMetrics returns the last collected snapshot
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

func (c *Collector) collect() {
	m := &SystemMetrics{Timestamp: time.Now()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.CPUPercent = percents[0]
	}
	if c.proc != nil {
		if p, err := c.proc.CPUPercent(); err == nil {
			m.ProcessCPUPercent = p
		}
		if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
			m.ProcessRSSGB = float64(info.RSS) / (1024 * 1024 * 1024)
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.MemoryUsedGB = float64(vm.Used) / (1024 * 1024 * 1024)
		m.MemoryTotalGB = float64(vm.Total) / (1024 * 1024 * 1024)
		m.MemoryPercent = vm.UsedPercent
	}

	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()

	c.logger.Info("System metrics",
		zap.Float64("cpu_pct", m.CPUPercent),
		zap.Float64("proc_cpu_pct", m.ProcessCPUPercent),
		zap.Float64("mem_used_gb", m.MemoryUsedGB),
		zap.Float64("mem_pct", m.MemoryPercent),
		zap.Float64("proc_rss_gb", m.ProcessRSSGB),
	)
}
