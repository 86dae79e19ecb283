package gp

import (
	"fmt"
	"math"
)

// Range bounds one hyperparameter. Init is the starting point of the search
// and is clamped into [Min, Max].
type Range struct {
	Min  float64
	Max  float64
	Init float64
}

func (r Range) validate(name string) error {
	if !(r.Min > 0) || !(r.Max >= r.Min) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("hyperparameter %s: invalid range [%g, %g]", name, r.Min, r.Max)
	}
	return nil
}

// Config controls model fitting.
type Config struct {
	TrendSignal     Range
	TrendLength     Range
	ShortSignal     Range
	ShortLength     Range
	RegressorLength Range
	Noise           Range

	// Jitter is added to the covariance diagonal on top of the noise variance.
	Jitter float64
	// MaxIterations caps the optimizer. Reaching it without meeting a
	// stopping criterion is a fit divergence.
	MaxIterations int
	// Tolerance stops the search once the log marginal likelihood has
	// changed by less than Tolerance relative to its best value for several
	// consecutive iterations.
	Tolerance float64
	// GradTolerance stops the search when every gradient component drops
	// below GradTolerance per training point.
	GradTolerance float64
}

const (
	defaultJitter        = 1e-6
	defaultMaxIterations = 200
	defaultTolerance     = 1e-7
	defaultGradTolerance = 1e-5
)

// DefaultConfig derives hyperparameter ranges from the span of the training
// window and its sampling interval, both in time-column units.
func DefaultConfig(span, interval float64) Config {
	if interval <= 0 {
		interval = span
	}
	trendMin := math.Max(span/4, 2*interval)
	shortMax := math.Max(span/4, interval)
	return Config{
		TrendSignal:     Range{Min: 1e-3, Max: 10, Init: 1},
		TrendLength:     Range{Min: trendMin, Max: math.Max(10*span, trendMin), Init: span},
		ShortSignal:     Range{Min: 1e-3, Max: 10, Init: 0.5},
		ShortLength:     Range{Min: interval / 2, Max: shortMax, Init: 2 * interval},
		RegressorLength: Range{Min: 0.05, Max: 50, Init: 1},
		Noise:           Range{Min: 1e-3, Max: 10, Init: 0.1},
		Jitter:          defaultJitter,
		MaxIterations:   defaultMaxIterations,
		Tolerance:       defaultTolerance,
		GradTolerance:   defaultGradTolerance,
	}
}

func (c Config) validate() error {
	named := []struct {
		name string
		r    Range
	}{
		{"trend_signal_std", c.TrendSignal},
		{"trend_length_scale", c.TrendLength},
		{"short_signal_std", c.ShortSignal},
		{"short_length_scale", c.ShortLength},
		{"regressor_length_scale", c.RegressorLength},
		{"noise_std", c.Noise},
	}
	for _, n := range named {
		if err := n.r.validate(n.name); err != nil {
			return err
		}
	}
	if c.Jitter < 0 {
		return fmt.Errorf("negative jitter %g", c.Jitter)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	return nil
}

// space maps an unconstrained optimizer vector onto bounded hyperparameters.
// Each coordinate u becomes exp(lo + (hi-lo)*sigmoid(u)) with lo and hi the
// logs of the range bounds, so every iterate stays inside its range.
//
// Layout: trend signal, trend length, short signal, short length, one length
// per regressor, noise.
type space struct {
	lo, hi []float64
	d      int
}

func newSpace(c Config, d int) space {
	ranges := make([]Range, 0, 5+d)
	ranges = append(ranges, c.TrendSignal, c.TrendLength, c.ShortSignal, c.ShortLength)
	for k := 0; k < d; k++ {
		ranges = append(ranges, c.RegressorLength)
	}
	ranges = append(ranges, c.Noise)

	s := space{lo: make([]float64, len(ranges)), hi: make([]float64, len(ranges)), d: d}
	for i, r := range ranges {
		s.lo[i], s.hi[i] = math.Log(r.Min), math.Log(r.Max)
	}
	return s
}

func (s space) dim() int { return len(s.lo) }

// initial returns the unconstrained vector for the clamped Init values.
func (s space) initial(c Config) []float64 {
	inits := []float64{c.TrendSignal.Init, c.TrendLength.Init, c.ShortSignal.Init, c.ShortLength.Init}
	for k := 0; k < s.d; k++ {
		inits = append(inits, c.RegressorLength.Init)
	}
	inits = append(inits, c.Noise.Init)

	u := make([]float64, len(inits))
	for i, v := range inits {
		width := s.hi[i] - s.lo[i]
		if width == 0 || !(v > 0) {
			continue
		}
		p := (math.Log(v) - s.lo[i]) / width
		p = math.Min(math.Max(p, 0.02), 0.98)
		u[i] = math.Log(p / (1 - p))
	}
	return u
}

func sigmoid(u float64) float64 { return 1 / (1 + math.Exp(-u)) }

// decode returns the hyperparameters for u and, per coordinate, the
// derivative of the log hyperparameter with respect to u.
func (s space) decode(u []float64) (Hyperparameters, []float64) {
	logs := make([]float64, len(u))
	dlog := make([]float64, len(u))
	for i, v := range u {
		sg := sigmoid(v)
		width := s.hi[i] - s.lo[i]
		logs[i] = s.lo[i] + width*sg
		dlog[i] = width * sg * (1 - sg)
	}
	h := Hyperparameters{
		TrendSignal:      math.Exp(logs[0]),
		TrendLength:      math.Exp(logs[1]),
		ShortSignal:      math.Exp(logs[2]),
		ShortLength:      math.Exp(logs[3]),
		RegressorLengths: make([]float64, s.d),
		Noise:            math.Exp(logs[4+s.d]),
	}
	for k := 0; k < s.d; k++ {
		h.RegressorLengths[k] = math.Exp(logs[4+k])
	}
	return h, dlog
}
