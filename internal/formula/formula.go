// Package formula sizes and composes the agent pool the way a chemist
// writes compounds: backlog role weights reduce to a smallest integer
// ratio (the empirical formula), the ratio scales to a target pool size
// by Hamilton largest-remainder apportionment (the molecular formula),
// and cosine similarity scores how faithfully the live pool matches the
// ratio.
package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fleetmind/internal/fleet"
)

// EmptyNotation is the notation for a formula with no weighted roles.
const EmptyNotation = "∅"

// ratioTolerance is how far from an integer a scaled weight may land
// while still counting as integral.
const ratioTolerance = 0.05

// maxMultiplier bounds the integer multipliers tried when the raw
// weight ratios are not integral.
const maxMultiplier = 12

// RoleWeight is a work-item tally for one role, derived fresh from the
// backlog each cycle.
type RoleWeight struct {
	Role     fleet.Role `json:"role"`
	Count    int        `json:"count"`
	Fraction float64    `json:"fraction"`
}

// Empirical is the smallest integer role ratio.
type Empirical struct {
	Ratios   map[fleet.Role]int `json:"ratios"`
	Notation string             `json:"notation"`
	Unit     int                `json:"unit"` // sum of ratios
}

// Molecular is the ratio scaled to integer agent counts.
type Molecular struct {
	Counts map[fleet.Role]int `json:"counts"`
	Total  int                `json:"total"`
}

// ScalingAction is the coarse pool-sizing verdict.
type ScalingAction string

const (
	ScaleHold      ScalingAction = "hold"
	ScaleUp        ScalingAction = "scale_up"
	ScaleDown      ScalingAction = "scale_down"
	ScaleRebalance ScalingAction = "rebalance"
)

// Recommendation carries the scaling verdict plus per-role deltas
// (optimal minus actual) and a human-readable reason.
type Recommendation struct {
	Verdict ScalingAction      `json:"verdict"`
	Deltas  map[fleet.Role]int `json:"deltas"`
	Reason  string             `json:"reason"`
}

// Result bundles one cycle's composition math.
type Result struct {
	Weights        []RoleWeight   `json:"weights"`
	Empirical      Empirical      `json:"empirical"`
	Molecular      Molecular      `json:"molecular"`
	Fidelity       float64        `json:"fidelity"`
	Recommendation Recommendation `json:"recommendation"`
}

// Weigh tallies backlog items (queued and active) into role weights.
func Weigh(jobs []fleet.Job) []RoleWeight {
	counts := map[fleet.Role]int{}
	total := 0
	for _, j := range jobs {
		if j.State != fleet.JobQueued && j.State != fleet.JobActive {
			continue
		}
		counts[j.Role]++
		total++
	}
	weights := make([]RoleWeight, 0, len(counts))
	for _, r := range fleet.Roles() {
		c := counts[r]
		if c == 0 {
			continue
		}
		weights = append(weights, RoleWeight{
			Role:     r,
			Count:    c,
			Fraction: float64(c) / float64(total),
		})
	}
	return weights
}

// EmpiricalRatio reduces role weights to their smallest integer ratio.
// Every nonzero weight is divided by the smallest; if the quotients are
// not all near-integer, multipliers 1..12 are tried; the rounded values
// are then divided by their GCD. Zero weights yield the empty formula.
func EmpiricalRatio(weights []RoleWeight) Empirical {
	nonzero := make([]RoleWeight, 0, len(weights))
	for _, w := range weights {
		if w.Count > 0 {
			nonzero = append(nonzero, w)
		}
	}
	if len(nonzero) == 0 {
		return Empirical{Ratios: map[fleet.Role]int{}, Notation: EmptyNotation}
	}

	smallest := nonzero[0].Count
	for _, w := range nonzero[1:] {
		if w.Count < smallest {
			smallest = w.Count
		}
	}

	quotients := make([]float64, len(nonzero))
	for i, w := range nonzero {
		quotients[i] = float64(w.Count) / float64(smallest)
	}

	mult := 1
	for m := 1; m <= maxMultiplier; m++ {
		if allNearInteger(quotients, m) {
			mult = m
			break
		}
	}

	ratios := make(map[fleet.Role]int, len(nonzero))
	ints := make([]int, 0, len(nonzero))
	for i, w := range nonzero {
		v := int(math.Round(quotients[i] * float64(mult)))
		if v < 1 {
			v = 1
		}
		ratios[w.Role] = v
		ints = append(ints, v)
	}

	g := gcdAll(ints)
	unit := 0
	for r := range ratios {
		ratios[r] /= g
		unit += ratios[r]
	}

	return Empirical{
		Ratios:   ratios,
		Notation: notation(ratios),
		Unit:     unit,
	}
}

func allNearInteger(quotients []float64, mult int) bool {
	for _, q := range quotients {
		v := q * float64(mult)
		if math.Abs(v-math.Round(v)) > ratioTolerance {
			return false
		}
	}
	return true
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func gcdAll(vals []int) int {
	g := vals[0]
	for _, v := range vals[1:] {
		g = gcd(g, v)
	}
	if g < 1 {
		return 1
	}
	return g
}

// notation renders the ratio chemistry-style, subscript 1 omitted,
// roles in fixed-set order: {frontend:1 backend:2} -> "FrBk2".
func notation(ratios map[fleet.Role]int) string {
	if len(ratios) == 0 {
		return EmptyNotation
	}
	var b strings.Builder
	for _, r := range fleet.Roles() {
		n, ok := ratios[r]
		if !ok {
			continue
		}
		b.WriteString(r.Symbol())
		if n > 1 {
			fmt.Fprintf(&b, "%d", n)
		}
	}
	return b.String()
}

// ScaleToTarget scales an empirical ratio to integer agent counts
// summing exactly to max(targetSize, role count), with every role in
// the ratio receiving at least one agent. Units are apportioned by
// Hamilton's largest-remainder method.
func ScaleToTarget(emp Empirical, targetSize int) Molecular {
	if emp.Unit == 0 || len(emp.Ratios) == 0 {
		return Molecular{Counts: map[fleet.Role]int{}}
	}
	effective := targetSize
	if effective < len(emp.Ratios) {
		effective = len(emp.Ratios)
	}

	type share struct {
		role      fleet.Role
		exact     float64
		count     int
		remainder float64
	}
	shares := make([]share, 0, len(emp.Ratios))
	for _, r := range fleet.Roles() {
		ratio, ok := emp.Ratios[r]
		if !ok {
			continue
		}
		exact := float64(ratio) / float64(emp.Unit) * float64(effective)
		count := int(math.Floor(exact))
		if count < 1 {
			count = 1
		}
		shares = append(shares, share{
			role:      r,
			exact:     exact,
			count:     count,
			remainder: exact - math.Floor(exact),
		})
	}

	sum := 0
	for _, s := range shares {
		sum += s.count
	}

	// Hand out leftover units to the largest fractional remainders.
	if sum < effective {
		sort.SliceStable(shares, func(i, j int) bool {
			return shares[i].remainder > shares[j].remainder
		})
		for i := 0; sum < effective; i = (i + 1) % len(shares) {
			shares[i].count++
			sum++
		}
	}

	// The minimum-one floor can overshoot small targets; reclaim from
	// the biggest allocations without breaking the one-per-role floor.
	for sum > effective {
		biggest := -1
		for i, s := range shares {
			if s.count > 1 && (biggest < 0 || s.count > shares[biggest].count) {
				biggest = i
			}
		}
		if biggest < 0 {
			break
		}
		shares[biggest].count--
		sum--
	}

	counts := make(map[fleet.Role]int, len(shares))
	total := 0
	for _, s := range shares {
		counts[s.role] = s.count
		total += s.count
	}
	return Molecular{Counts: counts, Total: total}
}

// Fidelity returns the cosine similarity between the live per-role
// count vector and the empirical ratio vector, aligned over the full
// fixed role set. 1 means parallel; 0 means either vector is zero.
func Fidelity(actual map[fleet.Role]int, emp Empirical) float64 {
	var dot, magA, magB float64
	for _, r := range fleet.Roles() {
		a := float64(actual[r])
		b := float64(emp.Ratios[r])
		dot += a * b
		magA += a * a
		magB += b * b
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// RecommendScaling compares the live pool against the molecular
// optimum. High-fidelity pools scale by headcount; low-fidelity pools
// need recomposition regardless of size. An empty pool with pending
// optimum always scales up: there is nothing to rebalance.
func RecommendScaling(actual map[fleet.Role]int, optimal Molecular, fidelity float64) Recommendation {
	current := 0
	for _, c := range actual {
		current += c
	}
	delta := optimal.Total - current

	deltas := make(map[fleet.Role]int)
	for _, r := range fleet.Roles() {
		d := optimal.Counts[r] - actual[r]
		if d != 0 {
			deltas[r] = d
		}
	}

	switch {
	case current == 0 && optimal.Total > 0:
		return Recommendation{
			Verdict: ScaleUp,
			Deltas:  deltas,
			Reason:  fmt.Sprintf("pool is empty; %d agents needed to cover the backlog", optimal.Total),
		}
	case fidelity > 0.95 && delta >= -1 && delta <= 1:
		return Recommendation{
			Verdict: ScaleHold,
			Deltas:  map[fleet.Role]int{},
			Reason:  fmt.Sprintf("composition matches at fidelity %.2f, size within one agent", fidelity),
		}
	case fidelity > 0.7 && delta > 0:
		return Recommendation{
			Verdict: ScaleUp,
			Deltas:  deltas,
			Reason:  fmt.Sprintf("composition close (fidelity %.2f) but %d agents short", fidelity, delta),
		}
	case fidelity > 0.7 && delta < 0:
		return Recommendation{
			Verdict: ScaleDown,
			Deltas:  deltas,
			Reason:  fmt.Sprintf("composition close (fidelity %.2f) with %d surplus agents", fidelity, -delta),
		}
	default:
		return Recommendation{
			Verdict: ScaleRebalance,
			Deltas:  deltas,
			Reason:  fmt.Sprintf("composition mismatch dominates (fidelity %.2f)", fidelity),
		}
	}
}

// Compute runs the full pipeline for one cycle: weigh the backlog,
// reduce, scale, score, recommend. Returns an error when the backlog
// carries no weighted work, which the caller treats as "no formula this
// cycle" rather than a fault.
func Compute(jobs []fleet.Job, pool []fleet.Agent, targetSize int) (*Result, error) {
	weights := Weigh(jobs)
	emp := EmpiricalRatio(weights)
	if emp.Unit == 0 {
		return nil, fmt.Errorf("empty backlog: no role weights to reduce")
	}

	molecular := ScaleToTarget(emp, targetSize)

	actual := map[fleet.Role]int{}
	for _, a := range pool {
		if a.State == fleet.AgentRetired {
			continue
		}
		actual[a.Role]++
	}

	fidelity := Fidelity(actual, emp)
	rec := RecommendScaling(actual, molecular, fidelity)

	return &Result{
		Weights:        weights,
		Empirical:      emp,
		Molecular:      molecular,
		Fidelity:       fidelity,
		Recommendation: rec,
	}, nil
}
