package fit

import "math"

var _ Problem = &Sine{}

// SineOptions selects which of offset and frequency are optimized.
type SineOptions struct {
	// FitFrequency frees the frequency. Otherwise it is fixed.
	FitFrequency bool
	// Frequency is the fixed frequency, or the initial value when
	// FitFrequency is set. Zero means 1.
	Frequency float64
	// Offset, when set, fixes the offset at that value and removes it from
	// the optimization. When nil the offset is fitted.
	Offset *float64
}

// Sine fits y = amplitude * sin(2π*frequency*x + phase) + offset.
//
// Parameter layout: [amplitude, phase, offset?, frequency?]. When the offset
// is fixed the frequency, if free, occupies index 2.
type Sine struct {
	x            []float64
	y            []float64
	fitFrequency bool
	fitOffset    bool
	dc           float64
	freq         float64
	p            [4]float64
	freqIdx      int
}

// NewSine seeds amplitude from half the sample range, phase from the x
// position of the maximum and offset from the range midpoint.
func NewSine(x, y []float64, opts SineOptions) *Sine {
	s := &Sine{x: x, y: y, fitFrequency: opts.FitFrequency, freq: opts.Frequency}
	if s.freq == 0 {
		s.freq = 1
	}

	var vMin, vMax, xMax float64
	if len(y) > 0 && len(x) > 0 {
		pMin, pMax := 0, 0
		for i, v := range y {
			if v < y[pMin] {
				pMin = i
			}
			if v > y[pMax] {
				pMax = i
			}
		}
		vMin, vMax = y[pMin], y[pMax]
		if pMax < len(x) {
			xMax = x[pMax]
		}
	}

	amp := (vMax - vMin) * 0.5
	mid := vMin + amp

	if opts.Offset == nil {
		s.fitOffset = true
		s.dc = mid
		s.freqIdx = 3
	} else {
		s.dc = *opts.Offset
		s.freqIdx = 2
	}

	s.p[0] = amp
	s.p[1] = xMax
	s.p[2] = s.dc
	s.p[s.freqIdx] = s.freq

	return s
}

// SineFunc evaluates the temporal model.
func SineFunc(amplitude, frequency, phase, offset, x float64) float64 {
	return amplitude*math.Sin(2*math.Pi*frequency*x+phase) + offset
}

func (s *Sine) NumParameters() int {
	n := 2
	if s.fitOffset {
		n++
	}
	if s.fitFrequency {
		n++
	}
	return n
}

func (s *Sine) NumObservations() int { return min(len(s.x), len(s.y)) }

func (s *Sine) Residuals(p, out []float64) {
	offset := s.dc
	if s.fitOffset {
		offset = p[2]
	}
	freq := s.freq
	if s.fitFrequency {
		freq = p[s.freqIdx]
	}
	for i := range out {
		out[i] = s.y[i] - SineFunc(p[0], freq, p[1], offset, s.x[i])
	}
}

func (s *Sine) Params() []float64 { return s.p[:] }

func (s *Sine) Tolerance() float64 { return DefaultTolerance }

func (s *Sine) Amplitude() float64 { return s.p[0] }

func (s *Sine) Phase() float64 { return s.p[1] }

func (s *Sine) Offset() float64 {
	if s.fitOffset {
		return s.p[2]
	}
	return s.dc
}

func (s *Sine) Frequency() float64 {
	if s.fitFrequency {
		return s.p[s.freqIdx]
	}
	return s.freq
}
