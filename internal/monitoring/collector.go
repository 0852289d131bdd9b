// Package monitoring collects in-process conversion metrics.
package monitoring

import (
	"sync"
	"time"

	"github.com/sells-group/tallyconv/internal/model"
)

// MetricsSnapshot holds a point-in-time view of pipeline activity since
// process start.
type MetricsSnapshot struct {
	ConversionsTotal    int            `json:"conversions_total"`
	ConversionsFailed   int            `json:"conversions_failed"`
	FailuresByKind      map[string]int `json:"failures_by_kind"`
	CorrectionsTotal    int            `json:"corrections_total"`
	CorrectionsRejected int            `json:"corrections_rejected"`
	ExportsByFormat     map[string]int `json:"exports_by_format"`
	AvgConversionMillis int64          `json:"avg_conversion_millis"`
	UptimeSecs          int64          `json:"uptime_secs"`
	CollectedAt         time.Time      `json:"collected_at"`
}

// Collector accumulates conversion pipeline counters. All methods are
// safe for concurrent use; a nil Collector discards everything.
type Collector struct {
	mu sync.Mutex

	started             time.Time
	conversions         int
	conversionsFailed   int
	failuresByKind      map[string]int
	corrections         int
	correctionsRejected int
	exportsByFormat     map[string]int
	conversionMillis    int64
}

// NewCollector creates a Collector anchored at the current time.
func NewCollector() *Collector {
	return &Collector{
		started:         time.Now().UTC(),
		failuresByKind:  make(map[string]int),
		exportsByFormat: make(map[string]int),
	}
}

// RecordConversion tallies one conversion attempt and its duration.
func (c *Collector) RecordConversion(err error, took time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversions++
	if err != nil {
		c.conversionsFailed++
		c.failuresByKind[failureKind(err)]++
		return
	}
	c.conversionMillis += took.Milliseconds()
}

// RecordCorrection tallies one correction batch.
func (c *Collector) RecordCorrection(err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.corrections++
	if err != nil {
		c.correctionsRejected++
	}
}

// RecordExport tallies one rendered export.
func (c *Collector) RecordExport(format string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exportsByFormat[format]++
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{CollectedAt: time.Now().UTC()}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := MetricsSnapshot{
		ConversionsTotal:    c.conversions,
		ConversionsFailed:   c.conversionsFailed,
		FailuresByKind:      make(map[string]int, len(c.failuresByKind)),
		CorrectionsTotal:    c.corrections,
		CorrectionsRejected: c.correctionsRejected,
		ExportsByFormat:     make(map[string]int, len(c.exportsByFormat)),
		UptimeSecs:          int64(time.Since(c.started).Seconds()),
		CollectedAt:         time.Now().UTC(),
	}
	for k, v := range c.failuresByKind {
		snap.FailuresByKind[k] = v
	}
	for k, v := range c.exportsByFormat {
		snap.ExportsByFormat[k] = v
	}
	if succeeded := c.conversions - c.conversionsFailed; succeeded > 0 {
		snap.AvgConversionMillis = c.conversionMillis / int64(succeeded)
	}
	return snap
}

func failureKind(err error) string {
	if kind, ok := model.KindOf(err); ok {
		return string(kind)
	}
	return "internal"
}
