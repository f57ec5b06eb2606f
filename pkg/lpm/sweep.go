package lpm

import (
	"context"
	"sort"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/spectral"
)

// Meter takes one spectral measurement.
type Meter interface {
	Measure(ctx context.Context) (spectral.Sample, error)
}

// SweepOptions configures Sweep.
type SweepOptions struct {
	// Duty is the PWM value each LED is lit with. Zero means FullPWM.
	Duty int
	// Settle is how long to wait after switching LEDs.
	Settle time.Duration
	// Shoot triggers the camera while each LED is lit.
	Shoot bool
	// Sleep replaces time.Sleep for the settle waits.
	Sleep func(context.Context, time.Duration) error
}

// SweepResult holds one spectrum per LED, ordered by wavelength.
type SweepResult struct {
	Pins        []int
	Wavelengths []int
	Spectra     []spectral.Sample
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sweep lights each LED of leds (pin to wavelength) alone and measures its
// spectrum with meter. The box is reset after every LED and on failure.
func Sweep(ctx context.Context, box *Device, meter Meter, leds map[int]int, o SweepOptions) (*SweepResult, error) {
	if o.Duty == 0 {
		o.Duty = FullPWM
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}

	pins := make([]int, 0, len(leds))
	for pin := range leds {
		pins = append(pins, pin)
	}
	sort.Slice(pins, func(i, j int) bool {
		if leds[pins[i]] != leds[pins[j]] {
			return leds[pins[i]] < leds[pins[j]]
		}
		return pins[i] < pins[j]
	})

	if _, err := box.Reset(ctx); err != nil {
		return nil, err
	}

	res := &SweepResult{}
	for _, pin := range pins {
		log := logrus.WithFields(logrus.Fields{
			"pin":        pin,
			"wavelength": leds[pin],
		})

		s, err := measureLED(ctx, box, meter, pin, o)
		if err != nil {
			// The box may be unusable after a cancelled read, so reset
			// with a fresh context.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if _, rerr := box.Reset(rctx); rerr != nil {
				log.WithError(rerr).Warn("failed to reset light box")
			}
			cancel()
			return res, pkgerrors.Wrapf(err, "led on pin %d", pin)
		}

		log.WithField("radiance", s.Radiance()).Info("led measured")
		res.Pins = append(res.Pins, pin)
		res.Wavelengths = append(res.Wavelengths, leds[pin])
		res.Spectra = append(res.Spectra, s)
	}
	return res, nil
}

func measureLED(ctx context.Context, box *Device, meter Meter, pin int, o SweepOptions) (spectral.Sample, error) {
	if _, err := box.SetPWM(ctx, pin, o.Duty); err != nil {
		return spectral.Sample{}, err
	}
	if err := o.Sleep(ctx, o.Settle); err != nil {
		return spectral.Sample{}, err
	}
	if o.Shoot {
		if _, err := box.Shoot(ctx); err != nil {
			return spectral.Sample{}, err
		}
	}

	s, err := meter.Measure(ctx)
	if err != nil {
		return spectral.Sample{}, err
	}

	if _, err := box.Reset(ctx); err != nil {
		return spectral.Sample{}, err
	}
	return s, o.Sleep(ctx, o.Settle)
}
