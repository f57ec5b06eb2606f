package fit

import "math"

// NumRGB2LMSParams is the length of the RGB→LMS parameter vector.
const NumRGB2LMSParams = 15

// DefaultWeightExponent emphasizes dim observations slightly.
const DefaultWeightExponent = 1.1

// RGB2LMSParams is the persisted RGB→LMS transform:
//
//	[0:3]   additive offsets Ao (L, M, S)
//	[3:12]  mixing matrix A, row-major, row = cone (L, M, S), column = gun (R, G, B)
//	[12:15] gamma exponents (R, G, B)
type RGB2LMSParams [NumRGB2LMSParams]float64

func (p RGB2LMSParams) Offsets() [3]float64 {
	return [3]float64{p[0], p[1], p[2]}
}

func (p RGB2LMSParams) Matrix() [3][3]float64 {
	var a [3][3]float64
	for k := 0; k < 3; k++ {
		for c := 0; c < 3; c++ {
			a[k][c] = p[3+3*k+c]
		}
	}
	return a
}

func (p RGB2LMSParams) Gammas() [3]float64 {
	return [3]float64{p[12], p[13], p[14]}
}

// Apply maps a gun drive triple (each in [0, 1]) to cone excitations.
func (p RGB2LMSParams) Apply(rgb [3]float64) [3]float64 {
	return rgb2lms(p[:], rgb)
}

func rgb2lms(p []float64, rgb [3]float64) [3]float64 {
	var lin [3]float64
	for c := 0; c < 3; c++ {
		lin[c] = math.Pow(rgb[c], p[12+c])
	}
	var out [3]float64
	for k := 0; k < 3; k++ {
		v := p[k]
		for c := 0; c < 3; c++ {
			v += p[3+3*k+c] * lin[c]
		}
		out[k] = v
	}
	return out
}

var _ Problem = &RGB2LMS{}

// RGB2LMS fits the 15-parameter gun-to-cone transform. Every observation
// contributes three residuals, one per cone.
type RGB2LMS struct {
	rgb    [][3]float64
	lms    [][3]float64
	weight [][3]float64
	we     float64
	res    RGB2LMSParams
}

// NewRGB2LMS returns the model for paired drive values and cone responses.
// Residuals are scaled by 1/max(|y|, ε)^(weightExponent-1); a weight
// exponent of 1 disables weighting, values <= 0 select the default.
func NewRGB2LMS(rgb, lms [][3]float64, weightExponent float64) *RGB2LMS {
	if weightExponent <= 0 {
		weightExponent = DefaultWeightExponent
	}
	n := min(len(rgb), len(lms))
	f := &RGB2LMS{
		rgb:    rgb[:n],
		lms:    lms[:n],
		weight: make([][3]float64, n),
		we:     weightExponent,
	}

	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			f.weight[i][k] = math.Pow(math.Max(math.Abs(lms[i][k]), 1e-12), 1-weightExponent)
		}
	}

	f.seed()
	return f
}

func (f *RGB2LMS) seed() {
	var lo, hi [3]float64
	for k := 0; k < 3; k++ {
		lo[k], hi[k] = math.Inf(1), math.Inf(-1)
	}
	for _, y := range f.lms {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], y[k])
			hi[k] = math.Max(hi[k], y[k])
		}
	}

	for k := 0; k < 3; k++ {
		span := hi[k] - lo[k]
		if len(f.lms) == 0 || !(span > 0) {
			lo[k], span = 0.01, 0
		}
		f.res[k] = lo[k]
		for c := 0; c < 3; c++ {
			v := 0.1 * span
			if k == c {
				v = 0.5 * span
			}
			if span == 0 {
				v = 0.00001
				if k == c {
					v = 0.00005
				}
			}
			f.res[3+3*k+c] = v
		}
		f.res[12+k] = 2.2
	}
}

func (f *RGB2LMS) NumParameters() int { return NumRGB2LMSParams }

func (f *RGB2LMS) NumObservations() int { return 3 * len(f.rgb) }

func (f *RGB2LMS) Residuals(p, out []float64) {
	for i, rgb := range f.rgb {
		model := rgb2lms(p, rgb)
		for k := 0; k < 3; k++ {
			out[3*i+k] = (f.lms[i][k] - model[k]) * f.weight[i][k]
		}
	}
}

func (f *RGB2LMS) Params() []float64 { return f.res[:] }

func (f *RGB2LMS) Tolerance() float64 { return DefaultTolerance }

// WeightExponent returns the exponent the weights were built with.
func (f *RGB2LMS) WeightExponent() float64 { return f.we }

// Result returns a copy of the current parameter vector.
func (f *RGB2LMS) Result() RGB2LMSParams { return f.res }
