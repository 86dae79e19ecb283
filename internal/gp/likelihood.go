package gp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var errNotPositiveDefinite = errors.New("covariance matrix is not positive definite")

// posterior holds the factorized training covariance for one hyperparameter set.
type posterior struct {
	h     Hyperparameters
	chol  mat.Cholesky
	alpha *mat.VecDense
	// kt and ks hold the trend and short-term covariance terms, n*n row major.
	kt, ks []float64
}

// factorize builds K = Kt + Ks + (noise^2 + jitter) I and solves K alpha = y.
func factorize(in *inputs, y []float64, h Hyperparameters, jitter float64) (*posterior, error) {
	n := in.n
	p := &posterior{h: h, kt: make([]float64, n*n), ks: make([]float64, n*n)}
	k := mat.NewSymDense(n, nil)
	buf := make([]float64, in.d)
	diag := h.Noise*h.Noise + jitter
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dt2 := in.dt2[i*n+j]
			kt := h.trend(dt2)
			ks := h.short(dt2, in.pair(i, j, buf))
			p.kt[i*n+j], p.kt[j*n+i] = kt, kt
			p.ks[i*n+j], p.ks[j*n+i] = ks, ks
			v := kt + ks
			if i == j {
				v += diag
			}
			k.SetSym(i, j, v)
		}
	}
	if ok := p.chol.Factorize(k); !ok {
		return nil, errNotPositiveDefinite
	}
	p.alpha = mat.NewVecDense(n, nil)
	if err := p.chol.SolveVecTo(p.alpha, mat.NewVecDense(n, y)); err != nil {
		return nil, err
	}
	return p, nil
}

// logLikelihood is the log marginal likelihood of y under the posterior's
// covariance.
func (p *posterior) logLikelihood(y []float64) float64 {
	n := float64(len(y))
	fit := floats.Dot(y, p.alpha.RawVector().Data)
	return -0.5*fit - 0.5*p.chol.LogDet() - 0.5*n*math.Log(2*math.Pi)
}

// gradient returns dL/d(log theta) for every hyperparameter in space layout,
// using dL/dtheta = 0.5 tr((alpha alpha^T - K^-1) dK/dtheta).
func (p *posterior) gradient(in *inputs) ([]float64, error) {
	n := in.n
	var inv mat.SymDense
	if err := p.chol.InverseTo(&inv); err != nil {
		return nil, err
	}
	alpha := p.alpha.RawVector().Data
	h := p.h

	g := make([]float64, 5+in.d)
	noiseIdx := 4 + in.d
	invLt2 := 1 / (h.TrendLength * h.TrendLength)
	invLs2 := 1 / (h.ShortLength * h.ShortLength)
	invLr2 := make([]float64, in.d)
	for k, l := range h.RegressorLengths {
		invLr2[k] = 1 / (l * l)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			w := alpha[i]*alpha[j] - inv.At(i, j)
			if i != j {
				w *= 2
			}
			idx := i*n + j
			kt, ks, dt2 := p.kt[idx], p.ks[idx], in.dt2[idx]

			g[0] += w * kt
			g[1] += 0.5 * w * kt * dt2 * invLt2
			g[2] += w * ks
			g[3] += 0.5 * w * ks * dt2 * invLs2
			for k := 0; k < in.d; k++ {
				g[4+k] += 0.5 * w * ks * in.dr2[k][idx] * invLr2[k]
			}
			if i == j {
				g[noiseIdx] += w * h.Noise * h.Noise
			}
		}
	}
	return g, nil
}
