// Package fit implements the nonlinear least-squares engine used to turn
// raw display measurements into model parameters. It contains:
//
//   - Problem: the capability set a fitting task exposes to the solver
//   - Solve: a Levenberg-Marquardt minimizer driving residuals toward zero
//   - Gamma, Sine and RGB2LMS: the three photometric/colorimetric models
//
// The solver never retries and never returns an error. It reports a Status
// and the caller decides whether to reseed, retry or abort.
package fit
