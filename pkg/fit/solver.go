package fit

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

const (
	// initialRadius scales the first trust radius against the seed norm.
	initialRadius = 0.1
	// minRatio is the smallest actual/predicted reduction that accepts a step.
	minRatio = 1e-4
	// radiusSlack lets an undamped step slightly overshoot the radius.
	radiusSlack = 0.1
	maxBisect   = 64
)

type options struct {
	maxIterations int
}

// Option configures Solve.
type Option func(*options)

// WithMaxIterations caps the number of outer iterations. Values <= 0 keep
// the default of 200*(n+1).
func WithMaxIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// solver holds the per-run work space.
type solver struct {
	p    Problem
	n, m int

	x, r *mat.VecDense
	jac  *mat.Dense
	jtj  *mat.SymDense
	grad *mat.VecDense

	lhs  *mat.SymDense
	chol mat.Cholesky
	neg  *mat.VecDense
	step *mat.VecDense
	jd   *mat.VecDense
}

func newSolver(p Problem, x0 []float64) *solver {
	n, m := p.NumParameters(), p.NumObservations()
	x := make([]float64, n)
	copy(x, x0)
	return &solver{
		p:    p,
		n:    n,
		m:    m,
		x:    mat.NewVecDense(n, x),
		r:    mat.NewVecDense(m, nil),
		jac:  mat.NewDense(m, n, nil),
		jtj:  mat.NewSymDense(n, nil),
		grad: mat.NewVecDense(n, nil),
		lhs:  mat.NewSymDense(n, nil),
		neg:  mat.NewVecDense(n, nil),
		step: mat.NewVecDense(n, nil),
		jd:   mat.NewVecDense(m, nil),
	}
}

func (s *solver) residuals(x []float64, out []float64) {
	s.p.Residuals(x, out)
}

// linearize refreshes the forward-difference Jacobian, JᵀJ and the
// gradient Jᵀr at the current point.
func (s *solver) linearize() {
	fd.Jacobian(s.jac, func(y, x []float64) { s.residuals(x, y) }, s.x.RawVector().Data, &fd.JacobianSettings{
		Formula:     fd.Forward,
		OriginValue: s.r.RawVector().Data,
	})
	s.jtj.SymOuterK(1, s.jac.T())
	s.grad.MulVec(s.jac.T(), s.r)
	s.neg.ScaleVec(-1, s.grad)
}

// solveDamped writes the solution of (JᵀJ + λI)·step = −g into s.step.
func (s *solver) solveDamped(lambda float64) bool {
	s.lhs.CopySym(s.jtj)
	for j := 0; j < s.n; j++ {
		s.lhs.SetSym(j, j, s.lhs.At(j, j)+lambda)
	}
	if !s.chol.Factorize(s.lhs) {
		return false
	}
	if err := s.chol.SolveVecTo(s.step, s.neg); err != nil {
		return false
	}
	for j := 0; j < s.n; j++ {
		if !isFinite(s.step.AtVec(j)) {
			return false
		}
	}
	return true
}

// boundedStep leaves in s.step the damped step whose norm fits the trust
// radius delta and returns the damping used. The undamped Gauss-Newton step
// is taken when it already fits, otherwise λ is bisected on a log scale
// until the step norm is within radiusSlack of delta.
func (s *solver) boundedStep(delta float64) float64 {
	if s.solveDamped(0) && mat.Norm(s.step, 2) <= (1+radiusSlack)*delta {
		return 0
	}

	// ‖(A + λI)⁻¹g‖ ≤ ‖g‖/λ for positive semi-definite A.
	hi := mat.Norm(s.grad, 2) / delta
	lo := 0.0
	for i := 0; i < maxBisect; i++ {
		mid := hi / 10
		if lo > 0 {
			mid = math.Sqrt(lo * hi)
		}
		if !s.solveDamped(mid) {
			lo = mid
			continue
		}
		pnorm := mat.Norm(s.step, 2)
		if math.Abs(pnorm-delta) <= radiusSlack*delta {
			return mid
		}
		if pnorm > delta {
			lo = mid
		} else {
			hi = mid
		}
		if lo > 0 && hi/lo <= 1+1e-12 {
			break
		}
	}
	s.solveDamped(hi)
	return hi
}

// Solve minimizes the sum of squared residuals of p with a
// Levenberg-Marquardt iteration using a forward-difference Jacobian. Every
// step is bounded by a trust radius measured in parameter units, so a
// parameter whose Jacobian column nearly vanishes at the seed cannot jump
// to a far-away stationary point. The best parameters found are written
// back to p.Params() whatever the returned status.
//
//nolint:gocyclo
func Solve(p Problem, opts ...Option) Result {
	n, m := p.NumParameters(), p.NumObservations()
	tol := p.Tolerance()
	buf := p.Params()
	if n <= 0 || m < n || len(buf) < n || !(tol > 0) {
		return Result{Status: StatusImproperInput}
	}

	o := options{maxIterations: 200 * (n + 1)}
	for _, opt := range opts {
		opt(&o)
	}

	log := logrus.WithFields(logrus.Fields{
		"parameters":   n,
		"observations": m,
		"operation":    "fit",
	})

	s := newSolver(p, buf[:n])
	s.residuals(s.x.RawVector().Data, s.r.RawVector().Data)
	res := Result{Evaluations: 1, Cost: halfSumSquares(s.r.RawVector().Data)}

	finish := func(status Status) Result {
		copy(buf[:n], s.x.RawVector().Data)
		res.Status = status
		log.WithFields(logrus.Fields{
			"status":      status,
			"iterations":  res.Iterations,
			"evaluations": res.Evaluations,
			"cost":        res.Cost,
		}).Debug("fit finished")
		return res
	}

	if !isFinite(res.Cost) {
		return finish(StatusDegenerate)
	}

	xNew := mat.NewVecDense(n, nil)
	rNew := make([]float64, m)

	xnorm := mat.Norm(s.x, 2)
	delta := initialRadius * xnorm
	if delta == 0 {
		delta = initialRadius
	}

	for res.Iterations < o.maxIterations {
		res.Iterations++

		if res.Cost == 0 {
			return finish(StatusCostConverged)
		}

		s.linearize()
		res.Evaluations += n

		maxDiag := 0.0
		for j := 0; j < n; j++ {
			maxDiag = math.Max(maxDiag, s.jtj.At(j, j))
		}
		if !(maxDiag > 0) || !isFinite(maxDiag) {
			return finish(StatusDegenerate)
		}

		// Cosine of the angle between r and the columns of J.
		rnorm := math.Sqrt(2 * res.Cost)
		gnorm := 0.0
		for j := 0; j < n; j++ {
			if d := s.jtj.At(j, j); d > 0 {
				gnorm = math.Max(gnorm, math.Abs(s.grad.AtVec(j))/(math.Sqrt(d)*rnorm))
			}
		}
		if gnorm <= tol {
			return finish(StatusGradientConverged)
		}

		for {
			lambda := s.boundedStep(delta)
			pnorm := mat.Norm(s.step, 2)
			if res.Iterations == 1 {
				delta = math.Min(delta, pnorm)
			}

			xNew.AddVec(s.x, s.step)
			s.residuals(xNew.RawVector().Data, rNew)
			res.Evaluations++
			costNew := halfSumSquares(rNew)

			// Relative reductions, actual and predicted by the linear model.
			actual := -1.0
			if isFinite(costNew) {
				actual = 1 - costNew/res.Cost
			}
			s.jd.MulVec(s.jac, s.step)
			predicted := -(mat.Dot(s.grad, s.step) + 0.5*mat.Dot(s.jd, s.jd)) / res.Cost
			ratio := 0.0
			if predicted > 0 {
				ratio = actual / predicted
			}

			switch {
			case ratio <= 0.25:
				delta = 0.5 * math.Min(delta, pnorm)
			case lambda == 0 || ratio >= 0.75:
				delta = 2 * pnorm
			}

			log.WithFields(logrus.Fields{
				"iteration": res.Iterations,
				"cost":      costNew,
				"ratio":     ratio,
				"radius":    delta,
				"lambda":    lambda,
			}).Trace("trial step")

			accepted := ratio >= minRatio
			if accepted {
				s.x.CopyVec(xNew)
				copy(s.r.RawVector().Data, rNew)
				res.Cost = costNew
				xnorm = mat.Norm(s.x, 2)
			}

			if math.Abs(actual) <= tol && predicted <= tol && ratio <= 2 {
				return finish(StatusCostConverged)
			}
			if delta <= tol*xnorm {
				return finish(StatusStepConverged)
			}
			if !(delta > 0) {
				return finish(StatusDegenerate)
			}
			if accepted {
				break
			}
		}
	}

	return finish(StatusMaxIterations)
}

func halfSumSquares(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return 0.5 * s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
