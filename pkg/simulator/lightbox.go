package simulator

import (
	"github.com/charlie0129/iris/pkg/lpm"
	"github.com/charlie0129/iris/pkg/pr655"
)

// LightBox is a simulated LED light box seen by a simulated PR-655. Each lit
// LED emits a Gaussian around its wavelength scaled by its PWM duty.
type LightBox struct {
	box  *lpm.Mock
	leds map[int]Primary
}

// NewLightBox returns a light box with one LED per entry of leds, which maps
// pins to peak wavelengths in nm.
func NewLightBox(leds map[int]int) *LightBox {
	lb := &LightBox{leds: make(map[int]Primary, len(leds))}
	pins := make([]int, 0, len(leds))
	for pin, wl := range leds {
		pins = append(pins, pin)
		lb.leds[pin] = Primary{Peak: float64(wl), Width: 10, Gain: 0.02}
	}
	lb.box = lpm.NewMock(pins...)
	return lb
}

// Box returns the light box side of the simulation.
func (lb *LightBox) Box() *lpm.Mock { return lb.box }

// Spectrum returns the emitted spectrum on the PR-655 grid.
func (lb *LightBox) Spectrum() []float64 {
	levels := lb.box.Levels()
	out := make([]float64, pr655.NumWavelengths)
	for i := range out {
		lambda := float64(pr655.StartWavelength + i*pr655.WavelengthStep)
		for pin, duty := range levels {
			out[i] += float64(duty) / lpm.FullPWM * lb.leds[pin].At(lambda)
		}
	}
	return out
}

// Instrument returns a PR-655 mock pointed at this light box.
func (lb *LightBox) Instrument() *pr655.Mock {
	return pr655.NewMock(lb.Spectrum)
}
