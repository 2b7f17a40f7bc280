// file: internal/metrics/collector.go

package metrics

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MetricsCollector samples system metrics on a fixed interval
type MetricsCollector struct {
	metrics        *Metrics
	updateInterval time.Duration
	clock          clockwork.Clock
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// NewMetricsCollector creates a collector; a nil clock means the wall clock
func NewMetricsCollector(metrics *Metrics, updateInterval time.Duration, clock clockwork.Clock) *MetricsCollector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetricsCollector{
		metrics:        metrics,
		updateInterval: updateInterval,
		clock:          clock,
		stopChan:       make(chan struct{}),
	}
}

// Start samples once immediately, then on every tick
func (mc *MetricsCollector) Start() {
	mc.metrics.UpdateSystemMetrics()
	mc.wg.Add(1)
	go mc.collect()
}

// Stop halts collection and waits for the sampling goroutine. Safe to call twice.
func (mc *MetricsCollector) Stop() {
	mc.stopOnce.Do(func() {
		close(mc.stopChan)
	})
	mc.wg.Wait()
}

func (mc *MetricsCollector) collect() {
	defer mc.wg.Done()

	ticker := mc.clock.NewTicker(mc.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopChan:
			return
		case <-ticker.Chan():
			mc.metrics.UpdateSystemMetrics()
		}
	}
}
