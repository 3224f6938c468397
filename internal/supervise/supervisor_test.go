package supervise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetmind/internal/assess"
	"fleetmind/internal/fleet"
	"fleetmind/internal/inform"
	"fleetmind/internal/situation"
)

func pendingPrediction(typ assess.PredictionType, prob float64, issuedAgo time.Duration) *assess.Prediction {
	return &assess.Prediction{
		ID:          "p-" + string(typ),
		Type:        typ,
		Probability: prob,
		Horizon:     10 * time.Minute,
		IssuedAt:    time.Now().Add(-issuedAgo),
		Outcome:     assess.OutcomePending,
	}
}

func quietContext() *situation.Context {
	return &situation.Context{
		Pool:     situation.PoolVector{ByRole: map[fleet.Role]int{}},
		Workload: situation.WorkloadVector{ByRole: map[fleet.Role]int{}},
	}
}

func TestHorizonGatesResolution(t *testing.T) {
	s := NewSupervisor(nil)
	fresh := pendingPrediction(assess.PredictionRoleSuccess, 0.8, time.Minute)
	elapsed := pendingPrediction(assess.PredictionRoleSuccess, 0.8, 15*time.Minute)

	r := s.Review(Input{
		Now:         time.Now(),
		Predictions: []*assess.Prediction{fresh, elapsed},
		Ctx:         quietContext(),
	})

	require.Equal(t, 1, r.Validated)
	require.Equal(t, assess.OutcomePending, fresh.Outcome, "predictions inside their horizon stay pending")
	require.NotEqual(t, assess.OutcomePending, elapsed.Outcome)
}

func TestSuccessPredictionGrading(t *testing.T) {
	s := NewSupervisor(nil)

	// Low failure EMA: completion looks likely, so a high-probability
	// success prediction grades correct and a low one incorrect.
	ctx := quietContext()
	ctx.Velocity.FailureRateEMA = 0.1

	optimist := pendingPrediction(assess.PredictionRoleSuccess, 0.8, 15*time.Minute)
	pessimist := pendingPrediction(assess.PredictionJobCompletion, 0.2, 15*time.Minute)

	r := s.Review(Input{
		Now:         time.Now(),
		Predictions: []*assess.Prediction{optimist, pessimist},
		Ctx:         ctx,
	})

	require.Equal(t, 2, r.Validated)
	require.Equal(t, 1, r.Correct)
	require.Equal(t, assess.OutcomeCorrect, optimist.Outcome)
	require.Equal(t, assess.OutcomeIncorrect, pessimist.Outcome)
	require.Equal(t, 0.5, r.Accuracy)
}

func TestSaturationPredictionGrading(t *testing.T) {
	s := NewSupervisor(nil)
	ctx := quietContext()
	ctx.Pool.Utilization = 95

	hit := pendingPrediction(assess.PredictionFleetSaturation, 0.7, 15*time.Minute)
	miss := pendingPrediction(assess.PredictionFleetSaturation, 0.3, 15*time.Minute)

	r := s.Review(Input{Now: time.Now(), Predictions: []*assess.Prediction{hit, miss}, Ctx: ctx})
	require.Equal(t, assess.OutcomeCorrect, hit.Outcome)
	require.Equal(t, assess.OutcomeIncorrect, miss.Outcome)
	require.Equal(t, 2, r.Validated)
}

func TestUnvalidatableTypesGradeCorrect(t *testing.T) {
	s := NewSupervisor(nil)
	p := pendingPrediction(assess.PredictionBacklogClearance, 0.1, 15*time.Minute)
	r := s.Review(Input{Now: time.Now(), Predictions: []*assess.Prediction{p}, Ctx: quietContext()})
	require.Equal(t, assess.OutcomeCorrect, p.Outcome)
	require.Equal(t, 1, r.Correct)
}

func TestNeverResolvesTwice(t *testing.T) {
	s := NewSupervisor(nil)
	p := pendingPrediction(assess.PredictionRoleSuccess, 0.8, 15*time.Minute)

	first := s.Review(Input{Now: time.Now(), Predictions: []*assess.Prediction{p}, Ctx: quietContext()})
	require.Equal(t, 1, first.Validated)

	second := s.Review(Input{Now: time.Now(), Predictions: []*assess.Prediction{p}, Ctx: quietContext()})
	require.Zero(t, second.Validated, "a resolved prediction is never regraded")
}

func TestFeedbackStrings(t *testing.T) {
	s := NewSupervisor(nil)

	// High failure EMA makes the optimistic prediction incorrect,
	// pushing accuracy to 0.
	ctx := quietContext()
	ctx.Velocity.FailureRateEMA = 0.9

	r := s.Review(Input{
		Now:            time.Now(),
		Predictions:    []*assess.Prediction{pendingPrediction(assess.PredictionRoleSuccess, 0.8, 15*time.Minute)},
		Ctx:            ctx,
		PreviousHealth: 90,
		CurrentHealth:  60,
		Directives:     []inform.Directive{{ID: "d1"}},
	})

	require.Len(t, r.Feedback, 3)
	require.Contains(t, r.Feedback[0], "prediction accuracy")
	require.Contains(t, r.Feedback[1], "health dropped 30")
	require.Contains(t, r.Feedback[2], "zero acknowledgements")
	require.Equal(t, -30.0, r.HealthDelta)
}

func TestQuietCycleEmitsNoFeedback(t *testing.T) {
	s := NewSupervisor(nil)
	ack := inform.Directive{ID: "d1", Acknowledged: true}
	r := s.Review(Input{
		Now:            time.Now(),
		Ctx:            quietContext(),
		PreviousHealth: 80,
		CurrentHealth:  82,
		Directives:     []inform.Directive{ack},
	})
	require.Empty(t, r.Feedback)
	require.Zero(t, r.Accuracy, "accuracy is zero when nothing validated")
	require.Equal(t, 1, r.DirectivesAcknowledged)
}
