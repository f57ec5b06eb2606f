package simulator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/charlie0129/iris/pkg/capture"
	"github.com/charlie0129/iris/pkg/fit"
	"github.com/charlie0129/iris/pkg/lpm"
	"github.com/charlie0129/iris/pkg/pr655"
	"github.com/charlie0129/iris/pkg/present"
)

func newDisplay(t *testing.T) *Display {
	t.Helper()
	canvas, err := present.New(present.Options{Width: 32, Height: 32})
	if err != nil {
		t.Fatalf("present.New: %v", err)
	}
	t.Cleanup(func() { canvas.Close() })
	return New(canvas, DefaultParams())
}

func TestDriveFollowsPresentedColor(t *testing.T) {
	d := newDisplay(t)
	if err := d.Present(capture.Color{R: 1, G: 0.5}); err != nil {
		t.Fatalf("Present: %v", err)
	}
	got := d.Drive()
	if got[0] != 1 || math.Abs(got[1]-0.5) > 1.0/255 || got[2] != 0 {
		t.Fatalf("unexpected drive %v", got)
	}
}

func TestBlackSpectrumIsFlat(t *testing.T) {
	d := newDisplay(t)
	if err := d.Present(capture.Color{}); err != nil {
		t.Fatalf("Present: %v", err)
	}
	for i, v := range d.Spectrum() {
		if v != DefaultParams().Black {
			t.Fatalf("bin %d: expected black level, got %v", i, v)
		}
	}
}

func capture3(t *testing.T, meter capture.Meter, d *Display) *capture.Result {
	t.Helper()
	res, err := capture.Run(context.Background(), d, meter, capture.Ramp(8),
		capture.WithPollInterval(time.Millisecond),
		capture.WithStartPollInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	return res
}

func checkGamma(t *testing.T, res *capture.Result) {
	t.Helper()
	want := DefaultParams().Gamma
	for gun := 0; gun < 3; gun++ {
		var x, y []float64
		for i, c := range res.Stimuli {
			v := c.Array()[gun]
			if v == 0 {
				continue
			}
			x = append(x, v)
			y = append(y, res.Responses[i].Radiance())
		}
		g := fit.NewGamma(x, y)
		r := fit.Solve(g)
		if !r.Status.Success() {
			t.Fatalf("gun %d: fit failed: %s", gun, r.Status)
		}
		if math.Abs(g.Exponent()-want[gun]) > 0.05 {
			t.Fatalf("gun %d: exponent %v, want %v", gun, g.Exponent(), want[gun])
		}
	}
}

func TestCaptureAndFitGamma(t *testing.T) {
	d := newDisplay(t)
	checkGamma(t, capture3(t, d, d))
}

func TestCaptureThroughInstrument(t *testing.T) {
	d := newDisplay(t)
	meter := pr655.New(d.Instrument(), pr655.WithoutDelays())
	checkGamma(t, capture3(t, meter, d))
}

func TestLightBoxSweep(t *testing.T) {
	leds := map[int]int{3: 630, 4: 450}
	lb := NewLightBox(leds)
	meter := pr655.New(lb.Instrument(), pr655.WithoutDelays())
	ctx := context.Background()
	if err := meter.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := lpm.Sweep(ctx, lpm.New(lb.Box()), meter, leds, lpm.SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Spectra) != 2 {
		t.Fatalf("expected 2 spectra, got %d", len(res.Spectra))
	}
	for i, s := range res.Spectra {
		peak := 0
		for k, v := range s.Values {
			if v > s.Values[peak] {
				peak = k
			}
		}
		want := float64(res.Wavelengths[i])
		if got := s.Wavelength(peak); math.Abs(got-want) > pr655.WavelengthStep {
			t.Errorf("led %d nm peaks at %g nm", res.Wavelengths[i], got)
		}
	}
}
