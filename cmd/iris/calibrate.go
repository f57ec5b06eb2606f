package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/capture"
	"github.com/charlie0129/iris/pkg/events"
	"github.com/charlie0129/iris/pkg/fit"
	"github.com/charlie0129/iris/pkg/pr655"
	"github.com/charlie0129/iris/pkg/present"
	"github.com/charlie0129/iris/pkg/simulator"
)

type calibrateOptions struct {
	simulate  bool
	width     int
	height    int
	levels    int
	stimuli   string
	framesDir string
	output    string
	noise     float64
}

func NewCalibrateCommand() *cobra.Command {
	o := calibrateOptions{}

	cmd := &cobra.Command{
		Use:     "calibrate",
		Short:   "Measure per-gun ramps and fit a gamma curve to each",
		GroupID: gCapture,
		Long: `Measure per-gun ramps and fit a gamma curve to each.

Every stimulus is drawn as a centered square on a mid gray background. Once a
stimulus is on screen the spectroradiometer takes one measurement, then the
next stimulus is shown. The spectra are written as a table and the radiance of
each gun is fitted with y = black + gain * x^gamma.

With --simulate, a synthetic monitor and a mocked PR-655 stand in for the
hardware.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCalibrate(o)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.simulate, "simulate", false, "use a simulated monitor and meter")
	f.IntVar(&o.width, "width", 256, "canvas width in pixels")
	f.IntVar(&o.height, "height", 256, "canvas height in pixels")
	f.IntVar(&o.levels, "levels", 0, "intensity levels per gun (defaults to the config value)")
	f.StringVar(&o.stimuli, "stimuli", "ramp", "stimulus set: ramp (per-gun ramps), gray (achromatic ramp) or primaries")
	f.StringVar(&o.framesDir, "frames-dir", "", "write each stimulus frame as PNG to this directory")
	f.StringVarP(&o.output, "output", "o", "-", "spectral table output file")
	f.Float64Var(&o.noise, "noise", 0, "relative measurement noise of the simulated meter")

	return cmd
}

func runCalibrate(o calibrateOptions) error {
	levels := o.levels
	if levels == 0 {
		levels = conf.RampLevels()
	}

	stimuli, err := stimulusSet(o.stimuli, levels)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	canvas, err := present.New(present.Options{
		Width:         o.width,
		Height:        o.height,
		FrameInterval: 16 * time.Millisecond,
		FrameDir:      o.framesDir,
	})
	if err != nil {
		return err
	}
	defer canvas.Close()

	var presenter capture.Presenter = canvas
	var dev *pr655.Device
	if o.simulate {
		params := simulator.DefaultParams()
		params.Noise = o.noise
		params.Seed = time.Now().UnixNano()
		sim := simulator.New(canvas, params)
		presenter = sim
		dev = pr655.New(sim.Instrument(), pr655.WithoutDelays())
	} else {
		dev, err = pr655.Open(conf.Device())
		if err != nil {
			return err
		}
	}
	defer dev.Close()

	if err := dev.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := dev.Stop(); err != nil {
			logrus.WithError(err).Warn("failed to leave remote mode")
		}
	}()
	serial, err := dev.SerialNumber(ctx)
	if err != nil {
		return err
	}
	model, err := dev.ModelNumber(ctx)
	if err != nil {
		return err
	}
	if err := dev.SetUnits(ctx, true); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"model":  model,
		"serial": serial,
	}).Info("spectroradiometer ready")

	session := capture.NewSession(presenter, dev, stimuli)
	session.Hub = events.NewEventHub()
	progress := session.Hub.Subscribe(events.CaptureMeasured, events.CaptureDone)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printProgress(progress, len(stimuli))
	}()

	res, err := session.Run(ctx,
		capture.WithPollInterval(conf.PollInterval()),
		capture.WithMeasureTimeout(conf.MeasureTimeout()),
	)
	if n := session.Hub.Dropped(progress); n > 0 {
		logrus.WithField("dropped", n).Warn("progress output is incomplete")
	}
	session.Hub.Unsubscribe(progress)
	<-done
	if err != nil {
		return err
	}

	if err := writeSpectra(o.output, res); err != nil {
		return err
	}

	if o.stimuli == "ramp" {
		printGammaFits(res)
	}
	return nil
}

func stimulusSet(name string, levels int) ([]capture.Color, error) {
	switch name {
	case "ramp":
		return capture.Ramp(levels), nil
	case "gray":
		return capture.Gray(levels), nil
	case "primaries":
		return capture.Primaries(), nil
	default:
		return nil, fmt.Errorf("unknown stimulus set %q", name)
	}
}

func printProgress(ch <-chan events.Event, total int) {
	for ev := range ch {
		if ev.Name != events.CaptureMeasured {
			continue
		}
		m, err := events.DecodeAs[events.CaptureMeasuredEvent](ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(os.Stderr, "[%3d/%d] rgb %v  radiance %s\n", m.Index+1, total, m.Stimulus, bold("%.4g", m.Radiance))
	}
}

func writeSpectra(path string, res *capture.Result) error {
	labels := make([]string, len(res.Stimuli))
	for i, c := range res.Stimuli {
		labels[i] = fmt.Sprintf("%.3f,%.3f,%.3f", c.R, c.G, c.B)
	}

	return writeTable(path, labels, res.Responses)
}

func printGammaFits(res *capture.Result) {
	guns := []string{"red", "green", "blue"}
	fmt.Fprintf(os.Stderr, "\n%-6s %12s %12s %8s  %s\n", "gun", "black", "gain", "gamma", "status")
	for gun, name := range guns {
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
		fmt.Fprintf(os.Stderr, "%-6s %12.5g %12.5g %8s  %s %s\n",
			name, g.Black(), g.Gain(), bold("%.3f", g.Exponent()), good(r.Status.Success()), r.Status)
	}
}
