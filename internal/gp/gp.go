// Package gp implements Gaussian Process regression with a trend plus
// short-term kernel whose hyperparameters are fitted by maximizing the log
// marginal likelihood inside bounded ranges.
//
// The input matrix holds time in column 0 and regressors in the remaining
// columns. Targets are standardized internally; predictions are returned in
// the original target units.
package gp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Model is a fitted GP. It is safe for concurrent Predict calls.
type Model struct {
	in         *inputs
	post       *posterior
	yMean      float64
	yStd       float64
	logLik     float64
	iterations int
}

// Fit optimizes the hyperparameters for x and y and returns the posterior
// model. Non-convergence within cfg.MaxIterations returns a
// *domain.FitDivergenceError. Cancellation of ctx is checked every iteration.
func Fit(ctx context.Context, x mat.Matrix, y []float64, cfg Config) (*Model, error) {
	n, cols := x.Dims()
	if n == 0 || cols == 0 {
		return nil, errors.New("empty training inputs")
	}
	if n != len(y) {
		return nil, fmt.Errorf("inputs have %d rows, targets %d", n, len(y))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if floats.HasNaN(y) {
		return nil, errors.New("targets contain NaN")
	}

	d := cols - 1
	t := make([]float64, n)
	r := make([][]float64, n)
	for i := 0; i < n; i++ {
		t[i] = x.At(i, 0)
		r[i] = make([]float64, d)
		for k := 0; k < d; k++ {
			r[i][k] = x.At(i, k+1)
		}
	}

	mean, std := stat.MeanStdDev(y, nil)
	if !(std > 0) {
		std = 1
	}
	z := make([]float64, n)
	for i, v := range y {
		z[i] = (v - mean) / std
	}

	in := newInputs(t, r, d)
	sp := newSpace(cfg, d)

	f := func(u []float64) (float64, []float64, error) {
		h, dlog := sp.decode(u)
		p, err := factorize(in, z, h, cfg.Jitter)
		if err != nil {
			return 0, nil, err
		}
		g, err := p.gradient(in)
		if err != nil {
			return 0, nil, err
		}
		for i := range g {
			g[i] *= dlog[i]
		}
		return p.logLikelihood(z), g, nil
	}

	opt, err := maximize(ctx, f, sp.initial(cfg), cfg, float64(n))
	if err != nil {
		return nil, err
	}

	h, _ := sp.decode(opt.u)
	post, err := factorize(in, z, h, cfg.Jitter)
	if err != nil {
		return nil, err
	}
	return &Model{
		in:         in,
		post:       post,
		yMean:      mean,
		yStd:       std,
		logLik:     opt.value,
		iterations: opt.iterations,
	}, nil
}

// Hyperparameters returns the fitted hyperparameters in standardized units.
func (m *Model) Hyperparameters() Hyperparameters {
	h := m.post.h
	h.RegressorLengths = append([]float64(nil), h.RegressorLengths...)
	return h
}

// TargetScale returns the mean and standard deviation used to standardize
// the targets.
func (m *Model) TargetScale() (mean, std float64) { return m.yMean, m.yStd }

// LogLikelihood returns the log marginal likelihood at the fitted
// hyperparameters, in standardized units.
func (m *Model) LogLikelihood() float64 { return m.logLik }

// Iterations returns the number of optimizer iterations used.
func (m *Model) Iterations() int { return m.iterations }

// Predict returns the predictive mean and variance of an observation at time
// t. With regressors nil it uses the trend component only: the short-term
// term is unconditioned and contributes its prior variance.
func (m *Model) Predict(t float64, regressors []float64) (mean, variance float64, err error) {
	in, h := m.in, m.post.h
	trendOnly := regressors == nil
	if !trendOnly && len(regressors) != in.d {
		return 0, 0, fmt.Errorf("got %d regressors, model has %d", len(regressors), in.d)
	}

	kv := make([]float64, in.n)
	dr2 := make([]float64, in.d)
	for i := 0; i < in.n; i++ {
		dt := t - in.t[i]
		kv[i] = h.trend(dt * dt)
		if trendOnly {
			continue
		}
		for k := 0; k < in.d; k++ {
			dr := regressors[k] - in.r[i][k]
			dr2[k] = dr * dr
		}
		kv[i] += h.short(dt*dt, dr2)
	}

	prior := h.TrendSignal * h.TrendSignal
	extra := h.Noise * h.Noise
	shortVar := h.ShortSignal * h.ShortSignal
	if trendOnly {
		extra += shortVar
	} else {
		prior += shortVar
	}

	mu := floats.Dot(kv, m.post.alpha.RawVector().Data)

	v := mat.NewVecDense(in.n, nil)
	if err := m.post.chol.SolveVecTo(v, mat.NewVecDense(in.n, kv)); err != nil {
		return 0, 0, err
	}
	variance = prior - floats.Dot(kv, v.RawVector().Data)
	variance = math.Max(variance, 0) + extra

	return m.yMean + mu*m.yStd, variance * m.yStd * m.yStd, nil
}
