package assess

import (
	"math"
	"testing"
)

func TestBayesianUpdateNeutralEvidence(t *testing.T) {
	if got := BayesianUpdate(0.5, 0.5); got != 0.5 {
		t.Errorf("BayesianUpdate(0.5, 0.5) = %v, want 0.5", got)
	}
}

func TestBayesianUpdateDirection(t *testing.T) {
	if got := BayesianUpdate(0.5, 0.9); got <= 0.5 {
		t.Errorf("strong positive evidence should raise the posterior, got %v", got)
	}
	if got := BayesianUpdate(0.5, 0.1); got >= 0.5 {
		t.Errorf("strong negative evidence should lower the posterior, got %v", got)
	}
}

func TestBayesianUpdateStaysInsideUnitInterval(t *testing.T) {
	for _, prior := range []float64{-1, 0, 0.001, 0.5, 0.999, 1, 2} {
		for _, lik := range []float64{-1, 0, 0.001, 0.5, 0.999, 1, 2} {
			got := BayesianUpdate(prior, lik)
			if got <= 0 || got >= 1 {
				t.Errorf("BayesianUpdate(%v, %v) = %v, want strictly inside (0, 1)", prior, lik, got)
			}
		}
	}
}

func TestPriorsUpdateIsDamped(t *testing.T) {
	p := Priors{}
	posterior := p.Update("role_success:backend", 0.9, 0.5)

	// posterior = 0.9*0.5 / (0.9*0.5 + 0.1*0.5) = 0.9
	if math.Abs(posterior-0.9) > 1e-9 {
		t.Errorf("posterior = %v, want 0.9", posterior)
	}
	// stored prior moves a tenth of the way: 0.5 + 0.1*(0.9-0.5) = 0.54
	if got := p["role_success:backend"]; math.Abs(got-0.54) > 1e-9 {
		t.Errorf("stored prior = %v, want 0.54 (damped, not replaced)", got)
	}
}

func TestPriorsGetClampsDefault(t *testing.T) {
	p := Priors{}
	if got := p.Get("unseen", 1.5); got != priorCeil {
		t.Errorf("Get with out-of-range default = %v, want %v", got, priorCeil)
	}
	if got := p.Get("unseen", -0.5); got != priorFloor {
		t.Errorf("Get with negative default = %v, want %v", got, priorFloor)
	}
}

func TestPriorsSnapshotIsCopy(t *testing.T) {
	p := Priors{"a": 0.4}
	snap := p.Snapshot()
	snap["a"] = 0.9
	if p["a"] != 0.4 {
		t.Error("mutating a snapshot must not touch the live priors")
	}
}
