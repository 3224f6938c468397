// Package supervise closes the loop: once a prediction's time horizon
// elapses it is graded against the now-observable signal, the cycle's
// health delta is computed, and free-text feedback is emitted for the
// next cycle to consume.
package supervise

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetmind/internal/assess"
	"fleetmind/internal/inform"
	"fleetmind/internal/situation"
)

// Report is one cycle's supervision output.
type Report struct {
	At                     time.Time `json:"at"`
	Validated              int       `json:"validated"`
	Correct                int       `json:"correct"`
	Accuracy               float64   `json:"accuracy"` // correct/validated, 0 when nothing validated
	HealthDelta            float64   `json:"health_delta"`
	DirectivesIssued       int       `json:"directives_issued"`
	DirectivesAcknowledged int       `json:"directives_acknowledged"`
	Feedback               []string  `json:"feedback,omitempty"`
}

// Supervisor grades predictions and emits feedback. Stateless.
type Supervisor struct {
	logger *zap.Logger
}

func NewSupervisor(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{logger: logger}
}

// Input is everything Review consumes.
type Input struct {
	Now            time.Time
	Predictions    []*assess.Prediction // full bounded list; pending entries are resolved in place
	Ctx            *situation.Context   // current cycle's situation
	PreviousHealth float64
	CurrentHealth  float64
	Directives     []inform.Directive // this cycle's directives
}

// Review resolves elapsed predictions, computes the health delta, and
// builds feedback strings. Predictions already resolved are skipped;
// resolution happens at most once per prediction.
func (s *Supervisor) Review(in Input) *Report {
	r := &Report{
		At:               in.Now,
		DirectivesIssued: len(in.Directives),
	}
	for _, d := range in.Directives {
		if d.Acknowledged {
			r.DirectivesAcknowledged++
		}
	}

	for _, p := range in.Predictions {
		if p.Outcome != assess.OutcomePending {
			continue
		}
		if in.Now.Sub(p.IssuedAt) < p.Horizon {
			continue
		}
		if s.resolve(p, in.Ctx) {
			p.Outcome = assess.OutcomeCorrect
			r.Correct++
		} else {
			p.Outcome = assess.OutcomeIncorrect
		}
		r.Validated++
	}

	if r.Validated > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Validated)
	}
	r.HealthDelta = in.CurrentHealth - in.PreviousHealth

	if r.Validated > 0 && r.Accuracy < 0.5 {
		r.Feedback = append(r.Feedback,
			fmt.Sprintf("prediction accuracy at %.0f%% over %d validated; widen confidence bands", r.Accuracy*100, r.Validated))
	}
	if r.HealthDelta < -10 {
		r.Feedback = append(r.Feedback,
			fmt.Sprintf("health dropped %.0f points since last cycle", -r.HealthDelta))
	}
	if r.DirectivesIssued > 0 && r.DirectivesAcknowledged == 0 {
		r.Feedback = append(r.Feedback,
			fmt.Sprintf("%d directive(s) issued with zero acknowledgements", r.DirectivesIssued))
	}

	s.logger.Debug("supervision complete",
		zap.Int("validated", r.Validated),
		zap.Int("correct", r.Correct),
		zap.Float64("health_delta", r.HealthDelta))
	return r
}

// resolve grades one elapsed prediction against the current signal.
// Types with no observable counterpart grade as correct: penalizing
// the unvalidatable would poison the accuracy metric.
func (s *Supervisor) resolve(p *assess.Prediction, ctx *situation.Context) bool {
	switch p.Type {
	case assess.PredictionRoleSuccess, assess.PredictionJobCompletion:
		completionEMA := 1 - ctx.Velocity.FailureRateEMA
		return (p.Probability >= 0.5) == (completionEMA >= 0.5)
	case assess.PredictionFleetSaturation:
		return (p.Probability >= 0.5) == (ctx.Pool.Utilization > 90)
	default:
		return true
	}
}
