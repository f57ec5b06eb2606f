// Package simulator provides a synthetic monitor for running captures
// without hardware. Stimuli are rasterized on a present.Canvas and the patch
// center is read back, so the simulated meter sees the quantized pixel values
// a real panel would receive.
package simulator

import (
	"context"
	"image"
	"math"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/capture"
	"github.com/charlie0129/iris/pkg/pr655"
	"github.com/charlie0129/iris/pkg/present"
	"github.com/charlie0129/iris/pkg/spectral"
)

// Primary is a gun's emission spectrum, modelled as a Gaussian.
type Primary struct {
	Peak  float64 // nm
	Width float64 // standard deviation, nm
	Gain  float64 // spectral radiance at the peak at full drive
}

// At returns the full-drive spectral radiance at lambda.
func (p Primary) At(lambda float64) float64 {
	d := (lambda - p.Peak) / p.Width
	return p.Gain * math.Exp(-0.5*d*d)
}

// Params describes the simulated panel.
type Params struct {
	Primaries [3]Primary
	Gamma     [3]float64
	// Black is the flat spectral radiance emitted at zero drive.
	Black float64
	// Noise is the relative standard deviation added to every bin.
	Noise float64
	Seed  int64
}

// DefaultParams returns a plausible LCD.
func DefaultParams() Params {
	return Params{
		Primaries: [3]Primary{
			{Peak: 610, Width: 18, Gain: 0.012},
			{Peak: 545, Width: 28, Gain: 0.010},
			{Peak: 450, Width: 14, Gain: 0.016},
		},
		Gamma: [3]float64{2.2, 2.3, 2.1},
		Black: 2e-5,
	}
}

// Display is a simulated monitor. It is a capture.Presenter and, through
// Measure or Instrument, a capture.Meter.
type Display struct {
	params Params

	mu     sync.Mutex
	canvas *present.Canvas
	rng    *rand.Rand
}

var (
	_ capture.Presenter = (*Display)(nil)
	_ capture.Meter     = (*Display)(nil)
)

// New returns a display drawing on canvas.
func New(canvas *present.Canvas, p Params) *Display {
	return &Display{
		params: p,
		canvas: canvas,
		rng:    rand.New(rand.NewSource(p.Seed)),
	}
}

// Present implements capture.Presenter.
func (d *Display) Present(c capture.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canvas.Present(c)
}

// SwapAndPoll implements capture.Presenter.
func (d *Display) SwapAndPoll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canvas.SwapAndPoll()
}

// Drive returns the normalized RGB at the center of the stimulus patch.
func (d *Display) Drive() [3]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drive()
}

func (d *Display) drive() [3]float64 {
	x, y, side := d.canvas.Patch()
	pt := image.Pt(int(x+side/2), int(y+side/2))
	r, g, b, _ := d.canvas.Image().At(pt.X, pt.Y).RGBA()
	return [3]float64{
		float64(r>>8) / 255,
		float64(g>>8) / 255,
		float64(b>>8) / 255,
	}
}

// Spectrum returns the emitted spectrum on the PR-655 grid.
func (d *Display) Spectrum() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	rgb := d.drive()
	out := make([]float64, pr655.NumWavelengths)
	for i := range out {
		lambda := float64(pr655.StartWavelength + i*pr655.WavelengthStep)
		v := d.params.Black
		for gun, p := range d.params.Primaries {
			v += math.Pow(rgb[gun], d.params.Gamma[gun]) * p.At(lambda)
		}
		if d.params.Noise > 0 {
			v *= 1 + d.params.Noise*d.rng.NormFloat64()
		}
		out[i] = v
	}
	return out
}

// Measure implements capture.Meter directly, without a wire protocol.
func (d *Display) Measure(ctx context.Context) (spectral.Sample, error) {
	if err := ctx.Err(); err != nil {
		return spectral.Sample{}, err
	}
	s := spectral.Sample{
		Start:  pr655.StartWavelength,
		Step:   pr655.WavelengthStep,
		Values: d.Spectrum(),
	}
	logrus.WithField("radiance", s.Radiance()).Trace("simulated measurement")
	return s, nil
}

// Instrument returns a PR-655 mock pointed at this display.
func (d *Display) Instrument() *pr655.Mock {
	return pr655.NewMock(d.Spectrum)
}
