package gp

import (
	"context"
	"errors"
	"math"

	"github.com/marweda/water-level-forecast/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// stallIterations ends the search once the likelihood has not improved by
// more than Config.Tolerance for this many consecutive iterations.
const stallIterations = 10

// objective evaluates the log marginal likelihood and its gradient in the
// unconstrained space.
type objective func(u []float64) (float64, []float64, error)

type optimum struct {
	u          []float64
	value      float64
	iterations int
}

// negated exposes -objective to the minimizer. Func and Grad at the same
// point share one evaluation.
type negated struct {
	f     objective
	x     []float64
	value float64
	grad  []float64
	ok    bool
}

func (n *negated) eval(x []float64) {
	if n.x != nil && floats.Equal(n.x, x) {
		return
	}
	n.x = append(n.x[:0], x...)
	v, g, err := n.f(x)
	n.ok = err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) && !floats.HasNaN(g)
	n.value, n.grad = -v, g
}

// Func returns +Inf where the covariance cannot be factorized so the line
// search backs off.
func (n *negated) Func(x []float64) float64 {
	n.eval(x)
	if !n.ok {
		return math.Inf(1)
	}
	return n.value
}

func (n *negated) Grad(grad, x []float64) {
	n.eval(x)
	for i := range grad {
		if n.ok {
			grad[i] = -n.grad[i]
		} else {
			grad[i] = 0
		}
	}
}

// maximize runs L-BFGS on -f from u0. It converges when the gradient's
// largest component drops below cfg.GradTolerance*scale, when the
// likelihood stalls, or when the line search cannot improve on a point
// reached after at least one step. Hitting cfg.MaxIterations first is a
// divergence.
func maximize(ctx context.Context, f objective, u0 []float64, cfg Config, scale float64) (optimum, error) {
	if err := ctx.Err(); err != nil {
		return optimum{}, err
	}

	obj := &negated{f: f}
	problem := optimize.Problem{
		Func: obj.Func,
		Grad: obj.Grad,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: cfg.GradTolerance * scale,
		Converger: &optimize.FunctionConverge{
			Relative:   cfg.Tolerance,
			Iterations: stallIterations,
		},
		MajorIterations: cfg.MaxIterations,
	}

	res, err := optimize.Minimize(problem, u0, settings, &optimize.LBFGS{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return optimum{}, ctxErr
	}
	if res == nil {
		return optimum{}, &domain.FitDivergenceError{Msg: err.Error()}
	}

	gradNorm := math.NaN()
	if res.Gradient != nil {
		gradNorm = floats.Norm(res.Gradient, 2)
	}
	switch {
	case res.Status == optimize.IterationLimit:
		return optimum{}, &domain.FitDivergenceError{
			Iterations: cfg.MaxIterations,
			GradNorm:   gradNorm,
			Msg:        "hyperparameter search did not converge",
		}
	case err != nil && !(stalled(err) && res.MajorIterations > 1):
		return optimum{}, &domain.FitDivergenceError{
			Iterations: res.MajorIterations,
			GradNorm:   gradNorm,
			Msg:        err.Error(),
		}
	case math.IsInf(res.F, 0) || math.IsNaN(res.F):
		return optimum{}, &domain.FitDivergenceError{
			Iterations: res.MajorIterations,
			GradNorm:   gradNorm,
			Msg:        "no finite likelihood found",
		}
	}
	return optimum{u: res.X, value: -res.F, iterations: res.MajorIterations}, nil
}

// stalled reports a line search that can make no further progress from the
// current point.
func stalled(err error) bool {
	return errors.Is(err, optimize.ErrNoProgress) ||
		errors.Is(err, optimize.ErrLinesearcherFailure) ||
		errors.Is(err, optimize.ErrNonDescentDirection)
}
