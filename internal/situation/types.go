package situation

import (
	"time"

	"fleetmind/internal/fleet"
)

// Severity grades detected patterns.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// TrendDirection is the sign of the throughput regression slope.
type TrendDirection string

const (
	TrendAccelerating TrendDirection = "accelerating"
	TrendStable       TrendDirection = "stable"
	TrendDecelerating TrendDirection = "decelerating"
)

// PatternType names a recognized temporal pattern.
type PatternType string

const (
	PatternBurst          PatternType = "burst"
	PatternDrought        PatternType = "drought"
	PatternCascadeFailure PatternType = "cascade_failure"
	PatternRoleStarvation PatternType = "role_starvation"
	PatternBottleneck     PatternType = "bottleneck"
	PatternIdleExcess     PatternType = "idle_excess"
)

// Pattern is one detected temporal pattern. Detectors are independent;
// a single window can surface several.
type Pattern struct {
	Type       PatternType `json:"type"`
	Role       fleet.Role  `json:"role,omitempty"`
	Confidence float64     `json:"confidence"`
	Severity   Severity    `json:"severity"`
	Detail     string      `json:"detail"`
}

// PoolVector summarizes the live agent pool.
type PoolVector struct {
	Total          int                `json:"total"`
	Active         int                `json:"active"`
	Idle           int                `json:"idle"`
	Utilization    float64            `json:"utilization"` // percent
	ByRole         map[fleet.Role]int `json:"by_role"`
	AvgPerformance float64            `json:"avg_performance"`
	CrashRate      float64            `json:"crash_rate"` // crashes/(crashes+completions) in window
}

// WorkloadVector summarizes the backlog.
type WorkloadVector struct {
	Total             int                `json:"total"`
	Active            int                `json:"active"`
	Queued            int                `json:"queued"`
	Completed         int                `json:"completed"`
	Failed            int                `json:"failed"`
	ByRole            map[fleet.Role]int `json:"by_role"` // queued + active per role
	AvgCompletionTime time.Duration      `json:"avg_completion_time"`
	BacklogDepth      int                `json:"backlog_depth"`
}

// VelocityVector summarizes fleet throughput over the window.
type VelocityVector struct {
	ItemsPerMinute float64        `json:"items_per_minute"`
	ThroughputEMA  float64        `json:"throughput_ema"`
	FailureRateEMA float64        `json:"failure_rate_ema"`
	Trend          TrendDirection `json:"trend"`
}

// Context is one cycle's situational picture. Immutable once built.
type Context struct {
	At         time.Time      `json:"at"`
	Window     time.Duration  `json:"window"`
	Pool       PoolVector     `json:"pool"`
	Workload   WorkloadVector `json:"workload"`
	Velocity   VelocityVector `json:"velocity"`
	Patterns   []Pattern      `json:"patterns"`
	EventCount int            `json:"event_count"`
	// Staleness is seconds since the newest observed event; the full
	// window when no events arrived.
	Staleness float64  `json:"staleness"`
	Feedback  []string `json:"feedback,omitempty"` // externally injected notes
}
