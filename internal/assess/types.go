package assess

import (
	"time"

	"fleetmind/internal/fleet"
	"fleetmind/internal/formula"
	"fleetmind/internal/situation"
)

// PredictionType names what a prediction is about.
type PredictionType string

const (
	PredictionRoleSuccess      PredictionType = "role_success"
	PredictionFleetSaturation  PredictionType = "fleet_saturation"
	PredictionJobCompletion    PredictionType = "job_completion"
	PredictionRoleCrash        PredictionType = "role_crash"
	PredictionBacklogClearance PredictionType = "backlog_clearance"
)

// Outcome tracks a prediction's validation state. The Supervisor
// resolves pending predictions once their horizon elapses; a
// prediction is never resolved twice.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// Prediction is one probabilistic claim about the near future.
type Prediction struct {
	ID          string         `json:"id"`
	Type        PredictionType `json:"type"`
	Role        fleet.Role     `json:"role,omitempty"`
	Probability float64        `json:"probability"`
	// Band is the confidence half-width around Probability; it narrows
	// as the underlying series accumulates observations.
	Band     float64       `json:"band"`
	Horizon  time.Duration `json:"horizon"`
	Basis    string        `json:"basis"`
	IssuedAt time.Time     `json:"issued_at"`
	Outcome  Outcome       `json:"outcome"`
}

// AnomalyType names a deviation class.
type AnomalyType string

const (
	AnomalyThroughputDeviation AnomalyType = "throughput_deviation"
	AnomalyFailureRateSpike    AnomalyType = "failure_rate_spike"
	AnomalyOverUtilization     AnomalyType = "over_utilization"
	AnomalyUnderUtilization    AnomalyType = "under_utilization"
)

// Anomaly is a Z-score (or fixed-threshold) deviation flag.
type Anomaly struct {
	Type     AnomalyType        `json:"type"`
	Metric   string             `json:"metric"`
	Observed float64            `json:"observed"`
	Expected float64            `json:"expected"`
	StdDev   float64            `json:"std_dev"`
	ZScore   float64            `json:"z_score"`
	Severity situation.Severity `json:"severity"`
}

// HealthTrend is the short-window direction of the health score.
type HealthTrend string

const (
	HealthImproving HealthTrend = "improving"
	HealthStable    HealthTrend = "stable"
	HealthDegrading HealthTrend = "degrading"
)

// RiskLevel grades the cycle's overall risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Assessment is one cycle's reasoning output. Immutable once built.
type Assessment struct {
	At           time.Time       `json:"at"`
	Predictions  []*Prediction   `json:"predictions"`
	Anomalies    []Anomaly       `json:"anomalies"`
	HealthScore  float64         `json:"health_score"` // 0-100, clamped
	HealthTrend  HealthTrend     `json:"health_trend"`
	RiskLevel    RiskLevel       `json:"risk_level"`
	RiskFactors  []string        `json:"risk_factors"`
	Formula      *formula.Result `json:"formula,omitempty"` // nil when the backlog is empty
	Entropy      float64         `json:"entropy"`
	EntropyRatio float64         `json:"entropy_ratio"`
}
