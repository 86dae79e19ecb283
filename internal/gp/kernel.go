package gp

import "math"

// Hyperparameters of the covariance function, in standardized target units.
// Length scales along time are in the unit of the time column.
type Hyperparameters struct {
	TrendSignal      float64
	TrendLength      float64
	ShortSignal      float64
	ShortLength      float64
	RegressorLengths []float64
	Noise            float64
}

// trend is the squared-exponential trend term for a squared time distance.
func (h Hyperparameters) trend(dt2 float64) float64 {
	return h.TrendSignal * h.TrendSignal * math.Exp(-0.5*dt2/(h.TrendLength*h.TrendLength))
}

// short is the short-term term: squared exponential over time multiplied by
// an ARD squared exponential over the regressors. dr2 holds one squared
// distance per regressor.
func (h Hyperparameters) short(dt2 float64, dr2 []float64) float64 {
	e := -0.5 * dt2 / (h.ShortLength * h.ShortLength)
	for k, d := range dr2 {
		l := h.RegressorLengths[k]
		e -= 0.5 * d / (l * l)
	}
	return h.ShortSignal * h.ShortSignal * math.Exp(e)
}

// inputs caches pairwise squared distances of the training inputs.
type inputs struct {
	n, d int
	t    []float64
	r    [][]float64
	dt2  []float64   // n*n, row major
	dr2  [][]float64 // per regressor, n*n
}

func newInputs(t []float64, r [][]float64, d int) *inputs {
	n := len(t)
	in := &inputs{n: n, d: d, t: t, r: r, dt2: make([]float64, n*n), dr2: make([][]float64, d)}
	for k := range in.dr2 {
		in.dr2[k] = make([]float64, n*n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dt := t[i] - t[j]
			in.dt2[i*n+j], in.dt2[j*n+i] = dt*dt, dt*dt
			for k := 0; k < d; k++ {
				dr := r[i][k] - r[j][k]
				in.dr2[k][i*n+j], in.dr2[k][j*n+i] = dr*dr, dr*dr
			}
		}
	}
	return in
}

// pair returns the regressor squared distances between training rows i and j
// into buf.
func (in *inputs) pair(i, j int, buf []float64) []float64 {
	for k := 0; k < in.d; k++ {
		buf[k] = in.dr2[k][i*in.n+j]
	}
	return buf
}
