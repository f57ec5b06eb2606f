package fit

import "fmt"

// DefaultTolerance is the square root of the float64 machine epsilon.
const DefaultTolerance = 1.49012e-8

// Problem is a least-squares fitting task.
type Problem interface {
	// NumParameters returns the number of free parameters.
	NumParameters() int
	// NumObservations returns the number of residuals produced per evaluation.
	NumObservations() int
	// Residuals writes one residual per observation into out for the
	// candidate vector params (len(params) == NumParameters()).
	Residuals(params, out []float64)
	// Params returns the buffer holding the current (after Solve, the optimal)
	// parameter vector. Only the first NumParameters() entries are used.
	Params() []float64
	// Tolerance is the relative convergence tolerance.
	Tolerance() float64
}

// Status is the termination code of Solve.
type Status int

const (
	StatusUnknown Status = iota
	// StatusImproperInput: fewer observations than parameters, no parameters
	// or a non-positive tolerance.
	StatusImproperInput
	// StatusCostConverged: actual and predicted relative reductions of the
	// sum of squares are at most the tolerance.
	StatusCostConverged
	// StatusStepConverged: relative step size is at most the tolerance.
	StatusStepConverged
	// StatusGradientConverged: the residual vector is orthogonal to the
	// Jacobian columns within the tolerance.
	StatusGradientConverged
	// StatusMaxIterations: the iteration budget was exhausted.
	StatusMaxIterations
	// StatusDegenerate: the Jacobian is zero or singular at every damping
	// level, or the residuals are not finite at the starting point.
	StatusDegenerate
)

// Success reports whether the solver converged.
func (s Status) Success() bool {
	switch s {
	case StatusCostConverged, StatusStepConverged, StatusGradientConverged:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusImproperInput:
		return "ImproperInput"
	case StatusCostConverged:
		return "CostConverged"
	case StatusStepConverged:
		return "StepConverged"
	case StatusGradientConverged:
		return "GradientConverged"
	case StatusMaxIterations:
		return "MaxIterations"
	case StatusDegenerate:
		return "Degenerate"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Result summarizes a Solve run.
type Result struct {
	Status      Status
	Iterations  int
	Evaluations int
	// Cost is half the sum of squared residuals at the returned parameters.
	Cost float64
}
