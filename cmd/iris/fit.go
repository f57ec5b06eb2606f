package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/fit"
	"github.com/charlie0129/iris/pkg/store"
)

func NewFitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fit",
		Short:   "Fit models to measured data",
		GroupID: gCapture,
		Long: `Fit models to measured data with Levenberg-Marquardt.

Input files are CSV. Lines starting with '#' are ignored and a non-numeric first
row is treated as a header. Use '-' to read from stdin.`,
	}

	cmd.AddCommand(
		newFitGammaCommand(),
		newFitSineCommand(),
		newFitRGB2LMSCommand(),
	)

	return cmd
}

func printStatus(r fit.Result) {
	fmt.Printf("status: %s %s (%d iterations, %d evaluations, cost %.6g)\n",
		good(r.Status.Success()), r.Status, r.Iterations, r.Evaluations, r.Cost)
}

func newFitGammaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gamma [x,y csv]",
		Short: "Fit y = black + gain * x^gamma",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rows, err := readColumns(args[0], 2)
			if err != nil {
				return err
			}

			g := fit.NewGamma(column(rows, 0), column(rows, 1))
			r := fit.Solve(g)
			printStatus(r)
			fmt.Printf("black: %s\ngain: %s\ngamma: %s\n",
				bold("%.8g", g.Black()), bold("%.8g", g.Gain()), bold("%.8g", g.Exponent()))
			if !r.Status.Success() {
				return fmt.Errorf("fit did not converge: %s", r.Status)
			}
			return nil
		},
	}
}

func newFitSineCommand() *cobra.Command {
	var (
		offset        float64
		fixOffset     bool
		fitFrequency  bool
		initFrequency float64
	)

	cmd := &cobra.Command{
		Use:   "sine [x,y csv]",
		Short: "Fit y = amplitude * sin(2 pi frequency x + phase) + offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rows, err := readColumns(args[0], 2)
			if err != nil {
				return err
			}

			opts := fit.SineOptions{FitFrequency: fitFrequency, Frequency: initFrequency}
			if fixOffset {
				opts.Offset = &offset
			}
			s := fit.NewSine(column(rows, 0), column(rows, 1), opts)
			r := fit.Solve(s)
			printStatus(r)
			fmt.Printf("amplitude: %s\nphase: %s\noffset: %s\nfrequency: %s\n",
				bold("%.8g", s.Amplitude()), bold("%.8g", s.Phase()),
				bold("%.8g", s.Offset()), bold("%.8g", s.Frequency()))
			if !r.Status.Success() {
				return fmt.Errorf("fit did not converge: %s", r.Status)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&fixOffset, "fix-offset", false, "hold the offset at --offset instead of fitting it")
	f.Float64Var(&offset, "offset", 0, "offset used with --fix-offset")
	f.BoolVar(&fitFrequency, "fit-frequency", false, "fit the frequency as well")
	f.Float64Var(&initFrequency, "frequency", 1, "frequency, or its initial value with --fit-frequency")

	return cmd
}

type rgb2lmsOptions struct {
	weightExponent float64
	save           bool
	monitor        string
	gfx            string
	mode           string
	dataset        string
	grayLevel      float64
	width          float64
	height         float64
}

func newFitRGB2LMSCommand() *cobra.Command {
	o := rgb2lmsOptions{}

	cmd := &cobra.Command{
		Use:   "rgb2lms [r,g,b,l,m,s csv]",
		Short: "Fit the RGB to cone excitation transform",
		Long: `Fit the RGB to cone excitation transform

    lms = offset + A * rgb^gamma

with a 3x3 matrix A and one gamma per gun. With --save the result is stored
for the display assembled from --monitor, --gfx and --mode.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runFitRGB2LMS(o, args[0])
		},
	}

	f := cmd.Flags()
	f.Float64Var(&o.weightExponent, "weight-exponent", 0, "residual weight exponent (defaults to the config value)")
	f.BoolVar(&o.save, "save", false, "save the result to the data store")
	f.StringVar(&o.monitor, "monitor", "", "monitor id (defaults to the default monitor)")
	f.StringVar(&o.gfx, "gfx", "", "graphics output (defaults to the config value)")
	f.StringVar(&o.mode, "mode", "", "display mode WIDTHxHEIGHT@REFRESH (defaults to the preferred mode)")
	f.StringVar(&o.dataset, "dataset", "", "name of the measurement dataset")
	f.Float64Var(&o.grayLevel, "gray-level", 0.5, "background gray level used during measurement")
	f.Float64Var(&o.width, "size-width", 0, "physical width of the visible area in meters")
	f.Float64Var(&o.height, "size-height", 0, "physical height of the visible area in meters")

	return cmd
}

func runFitRGB2LMS(o rgb2lmsOptions, path string) error {
	rows, err := readColumns(path, 6)
	if err != nil {
		return err
	}
	rgb := make([][3]float64, len(rows))
	lms := make([][3]float64, len(rows))
	for i, r := range rows {
		rgb[i] = [3]float64{r[0], r[1], r[2]}
		lms[i] = [3]float64{r[3], r[4], r[5]}
	}

	we := o.weightExponent
	if we == 0 {
		we = conf.WeightExponent()
	}
	f := fit.NewRGB2LMS(rgb, lms, we)
	r := fit.Solve(f)
	printStatus(r)

	p := f.Result()
	printRGB2LMSParams(p)
	if !r.Status.Success() {
		return fmt.Errorf("fit did not converge: %s", r.Status)
	}

	if !o.save {
		return nil
	}

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	d, err := assembleDisplay(cat, o.monitor, o.gfx, o.mode)
	if err != nil {
		return err
	}

	t, err := cat.Data.SaveRGB2LMS(store.RGB2LMS{
		Size:      store.Size{Width: o.width, Height: o.height},
		GrayLevel: o.grayLevel,
		Dataset:   o.dataset,
		Display:   d,
		Params:    p,
	})
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"id":      t.ID,
		"monitor": d.MonitorID,
		"link":    d.LinkID,
	}).Info("color transform saved")
	return nil
}

func printRGB2LMSParams(p fit.RGB2LMSParams) {
	o, a, g := p.Offsets(), p.Matrix(), p.Gammas()
	cones := []string{"L", "M", "S"}
	for k := range cones {
		fmt.Fprintf(os.Stdout, "%s = %s + [%11.5g %11.5g %11.5g] . rgb^gamma\n",
			cones[k], bold("%.5g", o[k]), a[k][0], a[k][1], a[k][2])
	}
	fmt.Printf("gamma: %s\n", bold("%.4f %.4f %.4f", g[0], g[1], g[2]))
}
