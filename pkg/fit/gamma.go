package fit

import "math"

var _ Problem = &Gamma{}

// Gamma fits y = black + gain * x^exponent.
type Gamma struct {
	x   []float64
	y   []float64
	res [3]float64
}

// NewGamma returns a gamma model seeded with black = y[0], a small gain and
// the standard display exponent of 2.2.
func NewGamma(x, y []float64) *Gamma {
	g := &Gamma{x: x, y: y}
	if len(y) > 0 {
		g.res[0] = y[0]
	}
	g.res[1] = 0.0003
	g.res[2] = 2.2
	return g
}

// GammaFunc evaluates the gamma model.
func GammaFunc(black, gain, exponent, x float64) float64 {
	return black + gain*math.Pow(x, exponent)
}

func (g *Gamma) NumParameters() int { return 3 }

func (g *Gamma) NumObservations() int { return min(len(g.x), len(g.y)) }

func (g *Gamma) Residuals(p, out []float64) {
	for i := range out {
		out[i] = g.y[i] - GammaFunc(p[0], p[1], p[2], g.x[i])
	}
}

func (g *Gamma) Params() []float64 { return g.res[:] }

func (g *Gamma) Tolerance() float64 { return DefaultTolerance }

func (g *Gamma) Black() float64 { return g.res[0] }

func (g *Gamma) Gain() float64 { return g.res[1] }

func (g *Gamma) Exponent() float64 { return g.res[2] }

// Eval evaluates the model at x with the current parameters.
func (g *Gamma) Eval(x float64) float64 {
	return GammaFunc(g.res[0], g.res[1], g.res[2], x)
}
