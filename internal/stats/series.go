// Package stats provides the small statistical kit the control loop
// leans on: bounded rolling series, exponential moving averages,
// least-squares trend slopes, and Z-scores.
package stats

import "math"

// Series is a bounded FIFO series of float64 observations. Pushing past
// the cap drops the oldest value.
type Series struct {
	cap    int
	values []float64
}

// NewSeries creates a series holding at most cap observations.
func NewSeries(cap int) *Series {
	if cap < 1 {
		cap = 1
	}
	return &Series{cap: cap}
}

// FromValues restores a series from persisted values, trimming to cap.
func FromValues(cap int, values []float64) *Series {
	s := NewSeries(cap)
	for _, v := range values {
		s.Push(v)
	}
	return s
}

// Push appends an observation, evicting the oldest when full.
func (s *Series) Push(v float64) {
	s.values = append(s.values, v)
	if len(s.values) > s.cap {
		s.values = s.values[len(s.values)-s.cap:]
	}
}

// Len returns the number of held observations.
func (s *Series) Len() int { return len(s.values) }

// Cap returns the series bound.
func (s *Series) Cap() int { return s.cap }

// Last returns the most recent observation, or 0 for an empty series.
func (s *Series) Last() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return s.values[len(s.values)-1]
}

// Values returns a copy of the held observations, oldest first.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// EMA folds the series into an exponential moving average with the
// given smoothing factor. Seeded with the first observation, so a
// constant series yields that constant and alpha=1 yields Last().
func (s *Series) EMA(alpha float64) float64 {
	if len(s.values) == 0 {
		return 0
	}
	ema := s.values[0]
	for _, v := range s.values[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}

// Mean returns the arithmetic mean, or 0 for an empty series.
func (s *Series) Mean() float64 {
	if len(s.values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.values {
		sum += v
	}
	return sum / float64(len(s.values))
}

// StdDev returns the population standard deviation.
func (s *Series) StdDev() float64 {
	n := len(s.values)
	if n < 2 {
		return 0
	}
	mean := s.Mean()
	sq := 0.0
	for _, v := range s.values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}

// Slope returns the least-squares regression slope of value against
// observation index. Positive means the series is rising.
func (s *Series) Slope() float64 {
	n := len(s.values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range s.values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}

// ZScore returns how many standard deviations v sits from the series
// mean. Returns 0 when the series has no spread.
func (s *Series) ZScore(v float64) float64 {
	sd := s.StdDev()
	if sd == 0 {
		return 0
	}
	return (v - s.Mean()) / sd
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
